// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"

	"github.com/bureau-foundation/remotesession/lib/config"
	"github.com/bureau-foundation/remotesession/session"
)

func hostCmd(args []string) error {
	var flags common
	b := newBinder("host")
	b.registerCommon(&flags)
	defaults := config.Default()

	bind(b, "listen", b.flagSet.String("listen", defaults.Host.Listen, "address to accept clients on"),
		func(c *config.Config) *string { return &c.Host.Listen })
	bind(b, "transport", b.flagSet.String("transport", defaults.Host.Transport, "stream transport: tcp or websocket"),
		func(c *config.Config) *string { return &c.Host.Transport })
	bind(b, "path", b.flagSet.String("path", defaults.Host.Path, "websocket upgrade path"),
		func(c *config.Config) *string { return &c.Host.Path })
	bind(b, "capture", b.flagSet.String("capture", defaults.Host.Capture.Source, "frame source: pattern, directory, or none"),
		func(c *config.Config) *string { return &c.Host.Capture.Source })
	bind(b, "capture-dir", b.flagSet.String("capture-dir", defaults.Host.Capture.Directory, "directory watched by the directory source"),
		func(c *config.Config) *string { return &c.Host.Capture.Directory })
	bind(b, "animate", b.flagSet.Bool("animate", defaults.Host.Capture.Animate, "animate the pattern source"),
		func(c *config.Config) *bool { return &c.Host.Capture.Animate })
	bind(b, "quality", b.flagSet.Int("quality", defaults.Framebuffer.Quality, "encoder quality, 1 to 100"),
		func(c *config.Config) *int { return &c.Framebuffer.Quality })
	bind(b, "framerate", b.flagSet.Int("framerate", defaults.Framebuffer.FramerateCap, "maximum frames per second, 0 for unlimited"),
		func(c *config.Config) *int { return &c.Framebuffer.FramerateCap })
	bind(b, "skip-unchanged", b.flagSet.Bool("skip-unchanged", defaults.Framebuffer.SkipUnchangedFrames, "do not resend identical frames"),
		func(c *config.Config) *bool { return &c.Framebuffer.SkipUnchangedFrames })
	bind(b, "background-receive", b.flagSet.Bool("background-receive", defaults.Host.ReceiveInBackground, "dispatch inbound messages on a background goroutine"),
		func(c *config.Config) *bool { return &c.Host.ReceiveInBackground })
	bind(b, "consume-input", b.flagSet.Bool("consume-input", defaults.Host.ConsumeInput, "stop replayed input at the host"),
		func(c *config.Config) *bool { return &c.Host.ConsumeInput })
	noImages := b.flagSet.Bool("no-images", false, "accept input but send no frames")
	b.apply = append(b.apply, func(c *config.Config) {
		if b.flagSet.Changed("no-images") {
			c.Host.SendImages = !*noImages
		}
	})
	recordPath := b.flagSet.String("record", "", "record replayed input to this file")

	cfg, err := b.parse(args, &flags, "remotesession host [flags]")
	if errors.Is(err, errHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	env, err := start(flags, cfg, false)
	if err != nil {
		return err
	}
	defer env.close()

	options, err := framebufferOptions(cfg)
	if err != nil {
		return err
	}
	source, err := captureSource(cfg.Host.Capture, env.logger)
	if err != nil {
		return err
	}

	host := session.NewHost(session.HostConfig{
		ListenAddress:       cfg.Host.Listen,
		Transport:           cfg.Host.Transport,
		Path:                cfg.Host.Path,
		Source:              source,
		Framebuffer:         options,
		InputTarget:         loggingTarget{logger: env.logger},
		ReceiveInBackground: cfg.Host.ReceiveInBackground,
		Pool:                env.pool,
		Logger:              env.logger,
		Metrics:             env.metrics,
	})
	defer host.Close()
	host.SetConsumeInput(cfg.Host.ConsumeInput)

	recording, err := openRecorder(*recordPath, env)
	if err != nil {
		return err
	}
	if recording != nil {
		host.RecordingHandler().SetRecordingWriter(recording)
	}

	if err := host.StartListening(env.ctx); err != nil {
		return err
	}
	env.logger.Info("host listening",
		"address", host.Address(),
		"transport", cfg.Host.Transport,
		"capture", cfg.Host.Capture.Source,
		"codec", cfg.Framebuffer.Codec,
	)

	tickUntil(env.ctx, host.Tick, nil)
	env.logger.Info("shutting down")
	return nil
}
