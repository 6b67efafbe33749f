// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bureau-foundation/remotesession/input"
	"github.com/bureau-foundation/remotesession/lib/clock"
)

type replayResult struct {
	played int
	err    error
}

func replayCmd(args []string) error {
	var flags common
	b := newBinder("replay")
	b.registerCommon(&flags)
	registerClientFlags(b)

	cfg, err := b.parse(args, &flags, "remotesession replay [flags] FILE ADDRESS")
	if errors.Is(err, errHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	rest := b.flagSet.Args()
	if len(rest) != 2 {
		return fmt.Errorf("replay takes a recording file and a host address")
	}
	path := rest[0]
	cfg.Client.Address = rest[1]

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening recording: %w", err)
	}
	defer file.Close()

	env, err := start(flags, cfg, false)
	if err != nil {
		return err
	}
	defer env.close()

	client, err := newSessionClient(cfg, env, nil)
	if err != nil {
		return err
	}
	defer client.Close()
	// Nothing local should see the replayed events.
	client.RecordingHandler().SetConsumeInput(true)

	player := input.NewSessionPlayer(file, clock.Real())
	results := make(chan replayResult, 1)
	var result *replayResult
	started := false

	tickUntil(env.ctx, func(dt time.Duration) {
		client.Tick(dt)
		if !started && client.IsConnected() {
			started = true
			env.logger.Info("replaying", "file", path, "address", client.Address())
			go func() {
				played, err := player.Play(env.ctx, input.PlaybackWriter(client.RecordingHandler()))
				results <- replayResult{played: played, err: err}
			}()
		}
		if result == nil {
			select {
			case received := <-results:
				result = &received
			default:
			}
		}
	}, func() bool {
		// Replayed events wait in the client's queue until a tick sends them.
		return result != nil && client.Queue().Len() == 0
	})

	if result == nil {
		return env.ctx.Err()
	}
	if result.err != nil {
		return fmt.Errorf("replaying %s after %d events: %w", path, result.played, result.err)
	}
	if !client.IsConnected() {
		env.logger.Warn("connection lost during replay; some events may not have been delivered")
	}
	env.logger.Info("replay complete", "events", result.played)
	return nil
}
