// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/bureau-foundation/remotesession/lib/imagecodec"
)

// DirectoryConfig configures a DirectorySource.
type DirectoryConfig struct {
	// Directory is watched for PNG and JPEG files.
	Directory string

	Logger *slog.Logger
}

// DirectorySource publishes the most recently written image in a
// directory. Partially written files fail to decode and are skipped;
// the write that completes them triggers another attempt.
type DirectorySource struct {
	config DirectoryConfig
	logger *slog.Logger
	latest latestFrame
	runner runner
}

// NewDirectorySource returns an unstarted source.
func NewDirectorySource(config DirectoryConfig) *DirectorySource {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DirectorySource{
		config: config,
		logger: logger.With("directory", config.Directory),
	}
}

// Start loads the newest existing image, if any, and then follows new
// writes.
func (d *DirectorySource) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("directory source: %w", err)
	}
	if err := watcher.Add(d.config.Directory); err != nil {
		watcher.Close()
		return fmt.Errorf("directory source: watch %s: %w", d.config.Directory, err)
	}
	if !d.runner.begin() {
		watcher.Close()
		return errors.New("directory source: already started")
	}

	if newest, err := newestImage(d.config.Directory); err != nil {
		d.logger.Warn("scanning for existing images", "error", err)
	} else if newest != "" {
		d.load(newest)
	}

	stop, done := d.runner.stop, d.runner.done
	go func() {
		defer close(done)
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if (event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) && isImageFile(event.Name) {
					d.load(event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.Warn("watch error", "error", err)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop ends watching.
func (d *DirectorySource) Stop() { d.runner.end() }

// LatestFrame implements Source.
func (d *DirectorySource) LatestFrame() (Frame, bool) { return d.latest.take() }

func (d *DirectorySource) load(path string) {
	file, err := os.Open(path)
	if err != nil {
		d.logger.Debug("opening image", "path", path, "error", err)
		return
	}
	defer file.Close()

	decoded, _, err := image.Decode(file)
	if err != nil {
		d.logger.Debug("decoding image", "path", path, "error", err)
		return
	}
	rgba := imagecodec.ToRGBA(decoded)
	bounds := rgba.Bounds()
	d.latest.publish(bounds.Dx(), bounds.Dy(), rgba.Pix)
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// newestImage returns the most recently modified image in directory,
// or "" if there is none.
func newestImage(directory string) (string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return "", err
	}
	var newest string
	var newestInfo os.FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newestInfo == nil || info.ModTime().After(newestInfo.ModTime()) {
			newest = filepath.Join(directory, entry.Name())
			newestInfo = info
		}
	}
	return newest, nil
}
