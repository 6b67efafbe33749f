// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/bureau-foundation/remotesession/lib/config"
	"github.com/bureau-foundation/remotesession/lib/display"
	"github.com/bureau-foundation/remotesession/session"
)

func loopbackCmd(args []string) error {
	var flags common
	b := newBinder("loopback")
	b.registerCommon(&flags)
	defaults := config.Default()
	bind(b, "transport", b.flagSet.String("transport", defaults.Host.Transport, "stream transport: tcp or websocket"),
		func(c *config.Config) *string { return &c.Host.Transport })
	bind(b, "capture", b.flagSet.String("capture", defaults.Host.Capture.Source, "frame source: pattern, directory, or none"),
		func(c *config.Config) *string { return &c.Host.Capture.Source })
	bind(b, "capture-dir", b.flagSet.String("capture-dir", defaults.Host.Capture.Directory, "directory watched by the directory source"),
		func(c *config.Config) *string { return &c.Host.Capture.Directory })
	duration := b.flagSet.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
	tui := b.flagSet.Bool("tui", term.IsTerminal(int(os.Stdout.Fd())), "show the session in the terminal")

	cfg, err := b.parse(args, &flags, "remotesession loopback [flags]")
	if errors.Is(err, errHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	env, err := start(flags, cfg, *tui)
	if err != nil {
		return err
	}
	defer env.close()

	ctx := env.ctx
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	options, err := framebufferOptions(cfg)
	if err != nil {
		return err
	}
	source, err := captureSource(cfg.Host.Capture, env.logger)
	if err != nil {
		return err
	}

	loopback := session.NewLoopback(session.LoopbackConfig{
		Transport:   cfg.Host.Transport,
		Source:      source,
		Framebuffer: options,
		Sink:        &display.MemorySink{},
		Target:      loggingTarget{logger: env.logger},
		Pool:        env.pool,
		Logger:      env.logger,
		Metrics:     env.metrics,
	})
	defer loopback.Close()
	if err := loopback.Start(ctx); err != nil {
		return err
	}
	env.logger.Info("loopback running", "address", loopback.Host().Address())

	view := clientView{client: loopback.Client(), tick: loopback.Tick}
	if *tui {
		return runViewer(ctx, view, loopback.Client().RecordingHandler())
	}

	started := time.Now()
	tickUntil(ctx, logTransitions(env.logger, view), nil)
	env.logger.Info("loopback finished", "elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}
