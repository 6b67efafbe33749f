// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "REMOTESESSION_CONFIG"

// Recognized enumeration values.
var (
	Transports     = []string{"tcp", "websocket"}
	CaptureSources = []string{"pattern", "directory", "none"}
	Codecs         = []string{"jpeg", "zstd", "lz4"}
	LogLevels      = []string{"debug", "info", "warn", "error"}
)

// Config is the complete remotesession configuration.
type Config struct {
	Host        HostConfig        `yaml:"host"`
	Client      ClientConfig      `yaml:"client"`
	Framebuffer FramebufferConfig `yaml:"framebuffer"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Workers     WorkersConfig     `yaml:"workers"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// HostConfig configures the hosting side.
type HostConfig struct {
	// Listen is the bind address. Default: ":1313"
	Listen string `yaml:"listen"`

	// Transport is "tcp" or "websocket". Default: tcp
	Transport string `yaml:"transport"`

	// Path is the websocket upgrade path. Default: /session
	Path string `yaml:"path"`

	// SendImages gates the framebuffer stream. Default: true
	SendImages bool `yaml:"send_images"`

	// ConsumeInput stops replayed events at the host's handler.
	ConsumeInput bool `yaml:"consume_input"`

	ReceiveInBackground bool `yaml:"receive_in_background"`

	Capture CaptureConfig `yaml:"capture"`
}

// CaptureConfig selects and configures the frame source.
type CaptureConfig struct {
	// Source is "pattern", "directory", or "none". Default: pattern
	Source string `yaml:"source"`

	// Directory is watched for PNG and JPEG files when Source is
	// "directory".
	Directory string `yaml:"directory"`

	// Width and Height size pattern frames. Default: 320x240
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Color fills pattern frames, as "#rrggbb". Default: #3366cc
	Color string `yaml:"color"`

	// Animate draws a scrolling gradient instead of a solid fill.
	Animate bool `yaml:"animate"`

	// Interval between pattern frames. Default: 33ms
	Interval time.Duration `yaml:"interval"`
}

// ClientConfig configures the viewing side.
type ClientConfig struct {
	// Address is the host to connect to. A missing port means 1313.
	Address string `yaml:"address"`

	Transport string `yaml:"transport"`
	Path      string `yaml:"path"`

	// RetryInterval separates connection attempts. Default: 5s
	RetryInterval time.Duration `yaml:"retry_interval"`

	// ConnectTimeout abandons a hanging attempt. Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	ReceiveInBackground bool `yaml:"receive_in_background"`

	// ConsumeInput keeps local input from reaching the local
	// application; it is only sent to the host.
	ConsumeInput bool `yaml:"consume_input"`
}

// FramebufferConfig configures frame encoding.
type FramebufferConfig struct {
	// Quality is the encoder quality, 1 to 100. Default: 85
	Quality int `yaml:"quality"`

	// FramerateCap limits frames per second; 0 is unlimited.
	// Default: 30
	FramerateCap int `yaml:"framerate_cap"`

	// Codec is "jpeg", "zstd", or "lz4". Default: jpeg
	Codec string `yaml:"codec"`

	// SkipUnchangedFrames suppresses frames identical to the last one
	// sent.
	SkipUnchangedFrames bool `yaml:"skip_unchanged_frames"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the HTTP bind address. Empty disables the endpoint.
	Listen string `yaml:"listen"`
}

// WorkersConfig configures the encode and decode pool.
type WorkersConfig struct {
	// Limit is the number of concurrent background tasks. Default: 4
	Limit int `yaml:"limit"`
}

// LoggingConfig configures diagnostic output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error". Default: info
	Level string `yaml:"level"`

	// Output is a file for JSON logs. Empty logs text to stderr.
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given, and
// the base a loaded file is merged onto.
func Default() *Config {
	return &Config{
		Host: HostConfig{
			Listen:     ":1313",
			Transport:  "tcp",
			Path:       "/session",
			SendImages: true,
			Capture: CaptureConfig{
				Source:   "pattern",
				Width:    320,
				Height:   240,
				Color:    "#3366cc",
				Interval: 33 * time.Millisecond,
			},
		},
		Client: ClientConfig{
			Transport:      "tcp",
			Path:           "/session",
			RetryInterval:  5 * time.Second,
			ConnectTimeout: 5 * time.Second,
		},
		Framebuffer: FramebufferConfig{
			Quality:      85,
			FramerateCap: 30,
			Codec:        "jpeg",
		},
		Workers: WorkersConfig{Limit: 4},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads the file named by REMOTESESSION_CONFIG. It fails when
// the variable is not set.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of a remotesession config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// Resolve loads path when it is non-empty, else the file named by
// REMOTESESSION_CONFIG when that is set, else returns Default.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	return Default(), nil
}

// LoadFile loads configuration from path, merged onto Default, and
// expands variables in path fields. It does not validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) expandVariables() {
	c.Host.Capture.Directory = expandVars(c.Host.Capture.Directory)
	c.Logging.Output = expandVars(c.Logging.Output)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every invalid setting, joined.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(slices.Contains(Transports, c.Host.Transport),
		"host.transport %q must be one of %v", c.Host.Transport, Transports)
	check(c.Host.Listen != "", "host.listen is required")
	check(slices.Contains(CaptureSources, c.Host.Capture.Source),
		"host.capture.source %q must be one of %v", c.Host.Capture.Source, CaptureSources)
	switch c.Host.Capture.Source {
	case "pattern":
		check(c.Host.Capture.Width > 0 && c.Host.Capture.Height > 0,
			"host.capture size %dx%d must be positive", c.Host.Capture.Width, c.Host.Capture.Height)
		check(c.Host.Capture.Interval > 0, "host.capture.interval must be positive")
		if _, err := c.Host.Capture.RGBA(); err != nil {
			errs = append(errs, err)
		}
	case "directory":
		check(c.Host.Capture.Directory != "", "host.capture.directory is required for the directory source")
	}

	check(slices.Contains(Transports, c.Client.Transport),
		"client.transport %q must be one of %v", c.Client.Transport, Transports)
	check(c.Client.RetryInterval > 0, "client.retry_interval must be positive")
	check(c.Client.ConnectTimeout > 0, "client.connect_timeout must be positive")

	check(c.Framebuffer.Quality >= 1 && c.Framebuffer.Quality <= 100,
		"framebuffer.quality %d must be between 1 and 100", c.Framebuffer.Quality)
	check(c.Framebuffer.FramerateCap >= 0,
		"framebuffer.framerate_cap %d must not be negative", c.Framebuffer.FramerateCap)
	check(slices.Contains(Codecs, c.Framebuffer.Codec),
		"framebuffer.codec %q must be one of %v", c.Framebuffer.Codec, Codecs)

	check(c.Workers.Limit >= 0, "workers.limit %d must not be negative", c.Workers.Limit)
	check(slices.Contains(LogLevels, c.Logging.Level),
		"logging.level %q must be one of %v", c.Logging.Level, LogLevels)

	return errors.Join(errs...)
}

// RGBA parses Color, which must be "#rrggbb". The result is opaque.
func (c CaptureConfig) RGBA() (color.RGBA, error) {
	hex, ok := strings.CutPrefix(c.Color, "#")
	if !ok || len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("host.capture.color %q must be #rrggbb", c.Color)
	}
	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("host.capture.color %q must be #rrggbb", c.Color)
	}
	return color.RGBA{R: uint8(value >> 16), G: uint8(value >> 8), B: uint8(value), A: 255}, nil
}
