// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/remotesession/channel"
	"github.com/bureau-foundation/remotesession/lib/capture"
	"github.com/bureau-foundation/remotesession/lib/clock"
	"github.com/bureau-foundation/remotesession/lib/config"
	"github.com/bureau-foundation/remotesession/lib/imagecodec"
	"github.com/bureau-foundation/remotesession/lib/metrics"
	"github.com/bureau-foundation/remotesession/session"
)

// tickInterval is the role tick period.
const tickInterval = time.Second / 60

// binder collects flags that override configuration file values. A
// flag overrides only when it was given on the command line, so its
// default never masks the file.
type binder struct {
	flagSet *pflag.FlagSet
	apply   []func(*config.Config)
}

func newBinder(name string) *binder {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	return &binder{flagSet: flagSet}
}

func bind[T any](b *binder, name string, value *T, field func(*config.Config) *T) {
	b.apply = append(b.apply, func(cfg *config.Config) {
		if b.flagSet.Changed(name) {
			*field(cfg) = *value
		}
	})
}

// common holds the flags every subcommand accepts.
type common struct {
	configPath string
	debug      bool
}

func (b *binder) registerCommon(flags *common) {
	defaults := config.Default()
	b.flagSet.StringVar(&flags.configPath, "config", "", "configuration file (default: $REMOTESESSION_CONFIG)")
	b.flagSet.BoolVar(&flags.debug, "debug", false, "enable debug logging")
	bind(b, "log-output", b.flagSet.String("log-output", defaults.Logging.Output, "write JSON logs to this file instead of stderr"),
		func(c *config.Config) *string { return &c.Logging.Output })
	bind(b, "metrics", b.flagSet.String("metrics", defaults.Metrics.Listen, "serve Prometheus metrics on this address"),
		func(c *config.Config) *string { return &c.Metrics.Listen })
	bind(b, "workers", b.flagSet.Int("workers", defaults.Workers.Limit, "concurrent frame encode and decode tasks"),
		func(c *config.Config) *int { return &c.Workers.Limit })
	bind(b, "codec", b.flagSet.String("codec", defaults.Framebuffer.Codec, "frame codec: jpeg, zstd, or lz4"),
		func(c *config.Config) *string { return &c.Framebuffer.Codec })
	b.flagSet.BoolP("help", "h", false, "show help")
}

// errHelp reports that help was printed and the command should exit
// successfully.
var errHelp = errors.New("help requested")

// parse parses args, loads the configuration, applies changed flags,
// and validates the result.
func (b *binder) parse(args []string, flags *common, usage string) (*config.Config, error) {
	if err := b.flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			b.printHelp(usage)
			return nil, errHelp
		}
		return nil, err
	}
	if help, _ := b.flagSet.GetBool("help"); help {
		b.printHelp(usage)
		return nil, errHelp
	}

	cfg, err := config.Resolve(flags.configPath)
	if err != nil {
		return nil, err
	}
	for _, apply := range b.apply {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func (b *binder) printHelp(usage string) {
	fmt.Fprintf(os.Stderr, "Usage:\n  %s\n\nFlags:\n", usage)
	b.flagSet.SetOutput(os.Stderr)
	b.flagSet.PrintDefaults()
}

// environment is the process-wide state shared by a subcommand's roles.
type environment struct {
	ctx     context.Context
	logger  *slog.Logger
	metrics *metrics.Metrics
	pool    *session.TaskPool
	cleanup []func()
}

// start builds the logger, the metrics endpoint, and the task pool.
// quiet discards logs that would otherwise reach stderr, for when a
// terminal UI owns the screen.
func start(flags common, cfg *config.Config, quiet bool) (*environment, error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	env := &environment{ctx: ctx, cleanup: []func(){stop}}

	level := parseLevel(cfg.Logging.Level)
	if flags.debug || os.Getenv("REMOTESESSION_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger, closeLog, err := newLogger(level, cfg.Logging.Output, quiet)
	if err != nil {
		env.close()
		return nil, err
	}
	env.logger = logger
	env.cleanup = append(env.cleanup, closeLog)

	if cfg.Metrics.Listen != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		env.metrics = metrics.New(registry)
		server, err := metrics.NewServer(cfg.Metrics.Listen, registry, logger)
		if err != nil {
			env.close()
			return nil, fmt.Errorf("starting metrics server: %w", err)
		}
		go func() {
			if err := server.Serve(ctx); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("serving metrics", "address", server.Address())
		env.cleanup = append(env.cleanup, func() { server.Close() })
	}

	env.pool = session.NewTaskPool(cfg.Workers.Limit)
	return env, nil
}

// close runs cleanup in reverse order.
func (env *environment) close() {
	for i := len(env.cleanup) - 1; i >= 0; i-- {
		env.cleanup[i]()
	}
}

func parseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// newLogger writes JSON to output when it is set, text to stderr
// otherwise, and nothing when quiet leaves no destination.
func newLogger(level slog.Level, output string, quiet bool) (*slog.Logger, func(), error) {
	options := &slog.HandlerOptions{Level: level}
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log output: %w", err)
		}
		return slog.New(slog.NewJSONHandler(file, options)), func() { file.Close() }, nil
	}
	if quiet {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, options)), func() {}, nil
}

// tickUntil ticks on a 60 Hz ticker until ctx is done or finished
// reports true. finished may be nil.
func tickUntil(ctx context.Context, tick func(time.Duration), finished func() bool) {
	clk := clock.Real()
	ticker := clk.NewTicker(tickInterval)
	defer ticker.Stop()

	last := clk.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			tick(now.Sub(last))
			last = now
			if finished != nil && finished() {
				return
			}
		}
	}
}

func framebufferOptions(cfg *config.Config) (channel.FramebufferOptions, error) {
	codec, err := imagecodec.ByName(cfg.Framebuffer.Codec)
	if err != nil {
		return channel.FramebufferOptions{}, err
	}
	return channel.FramebufferOptions{
		Quality:       cfg.Framebuffer.Quality,
		FramerateCap:  cfg.Framebuffer.FramerateCap,
		Codec:         codec,
		SkipUnchanged: cfg.Framebuffer.SkipUnchangedFrames,
		SendImages:    cfg.Host.SendImages,
	}, nil
}

// captureSource builds the configured frame source, or nil for "none".
func captureSource(cfg config.CaptureConfig, logger *slog.Logger) (capture.Source, error) {
	switch cfg.Source {
	case "pattern":
		fill, err := cfg.RGBA()
		if err != nil {
			return nil, err
		}
		return capture.NewPatternSource(capture.PatternConfig{
			Width:    cfg.Width,
			Height:   cfg.Height,
			Color:    fill,
			Animate:  cfg.Animate,
			Interval: cfg.Interval,
		}), nil
	case "directory":
		return capture.NewDirectorySource(capture.DirectoryConfig{
			Directory: cfg.Directory,
			Logger:    logger,
		}), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown capture source %q", cfg.Source)
	}
}

// openRecorder creates path and returns a session recorder writing to
// it, or nil when path is empty.
func openRecorder(path string, env *environment) (*sessionRecording, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating recording: %w", err)
	}
	recording := newSessionRecording(file)
	env.cleanup = append(env.cleanup, func() {
		if err := recording.Close(); err != nil {
			env.logger.Error("closing recording", "path", path, "error", err)
			return
		}
		env.logger.Info("recording saved", "path", path, "events", recording.Count())
	})
	return recording, nil
}
