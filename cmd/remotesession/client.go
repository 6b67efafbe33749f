// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/bureau-foundation/remotesession/input"
	"github.com/bureau-foundation/remotesession/lib/config"
	"github.com/bureau-foundation/remotesession/lib/display"
	"github.com/bureau-foundation/remotesession/lib/termview"
	"github.com/bureau-foundation/remotesession/session"
)

// registerClientFlags binds the flags shared by client and replay.
func registerClientFlags(b *binder) {
	defaults := config.Default()
	bind(b, "transport", b.flagSet.String("transport", defaults.Client.Transport, "stream transport: tcp or websocket"),
		func(c *config.Config) *string { return &c.Client.Transport })
	bind(b, "path", b.flagSet.String("path", defaults.Client.Path, "websocket upgrade path"),
		func(c *config.Config) *string { return &c.Client.Path })
	bind(b, "retry-interval", b.flagSet.Duration("retry-interval", defaults.Client.RetryInterval, "time between connection attempts"),
		func(c *config.Config) *time.Duration { return &c.Client.RetryInterval })
	bind(b, "connect-timeout", b.flagSet.Duration("connect-timeout", defaults.Client.ConnectTimeout, "abandon a connection attempt after this long"),
		func(c *config.Config) *time.Duration { return &c.Client.ConnectTimeout })
	bind(b, "background-receive", b.flagSet.Bool("background-receive", defaults.Client.ReceiveInBackground, "dispatch inbound messages on a background goroutine"),
		func(c *config.Config) *bool { return &c.Client.ReceiveInBackground })
}

// newSessionClient builds a client from cfg.Client. recorder may be nil.
func newSessionClient(cfg *config.Config, env *environment, recorder input.Writer) (*session.Client, error) {
	options, err := framebufferOptions(cfg)
	if err != nil {
		return nil, err
	}
	return session.NewClient(session.ClientConfig{
		Address:             cfg.Client.Address,
		Transport:           cfg.Client.Transport,
		Path:                cfg.Client.Path,
		RetryInterval:       cfg.Client.RetryInterval,
		ConnectTimeout:      cfg.Client.ConnectTimeout,
		Framebuffer:         options,
		Sink:                &display.MemorySink{},
		InputRecorder:       recorder,
		ReceiveInBackground: cfg.Client.ReceiveInBackground,
		Pool:                env.pool,
		Logger:              env.logger,
		Metrics:             env.metrics,
	})
}

func clientCmd(args []string) error {
	var flags common
	b := newBinder("client")
	b.registerCommon(&flags)
	registerClientFlags(b)
	bind(b, "consume-input", b.flagSet.Bool("consume-input", config.Default().Client.ConsumeInput, "send local input only to the host"),
		func(c *config.Config) *bool { return &c.Client.ConsumeInput })
	tui := b.flagSet.Bool("tui", term.IsTerminal(int(os.Stdout.Fd())), "show the session in the terminal")
	recordPath := b.flagSet.String("record", "", "record sent input to this file")

	cfg, err := b.parse(args, &flags, "remotesession client [flags] [ADDRESS]")
	if errors.Is(err, errHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	switch rest := b.flagSet.Args(); len(rest) {
	case 0:
	case 1:
		cfg.Client.Address = rest[0]
	default:
		return fmt.Errorf("unexpected argument: %s", rest[1])
	}
	if cfg.Client.Address == "" {
		return fmt.Errorf("host address required (argument or client.address in the configuration)")
	}

	env, err := start(flags, cfg, *tui)
	if err != nil {
		return err
	}
	defer env.close()

	var recorder input.Writer
	recording, err := openRecorder(*recordPath, env)
	if err != nil {
		return err
	}
	if recording != nil {
		recorder = recording
	}

	client, err := newSessionClient(cfg, env, recorder)
	if err != nil {
		return err
	}
	defer client.Close()
	client.RecordingHandler().SetConsumeInput(cfg.Client.ConsumeInput)

	view := clientView{client: client, tick: client.Tick}
	if *tui {
		return runViewer(env.ctx, view, client.RecordingHandler())
	}

	env.logger.Info("connecting", "address", client.Address(), "transport", cfg.Client.Transport)
	tickUntil(env.ctx, logTransitions(env.logger, view), nil)
	return nil
}

// runViewer runs the terminal viewer until the user quits or ctx ends.
func runViewer(ctx context.Context, view clientView, handler *input.RecordingHandler) error {
	model := termview.NewModel(termview.Config{Viewer: view, Handler: handler})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// logTransitions ticks view and logs client state changes and the
// first frame of each connection.
func logTransitions(logger *slog.Logger, view clientView) func(time.Duration) {
	state := view.client.State()
	framed := false
	return func(dt time.Duration) {
		view.Tick(dt)
		if current := view.client.State(); current != state {
			state = current
			framed = false
			logger.Info("client "+current.String(), "address", view.client.Address(), "attempts", view.client.Attempts())
		}
		if !framed {
			if image, ok := view.VisibleImage(); ok {
				framed = true
				logger.Info("receiving frames", "width", image.Width(), "height", image.Height())
			}
		}
	}
}
