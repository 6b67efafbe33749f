// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the session
// roles and channels.
//
// Every piece of remote-session timing is expressed against a Clock:
// the client's connection retry interval and connect timeout, the
// framebuffer channel's frame pacing, the CLI tick loop, and replay of
// recorded input sessions. Production code uses Real(). Tests use
// Fake(), which stands still until Advance is called, so a test can
// walk a client through five retry intervals without sleeping:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	client := session.NewClient(session.ClientConfig{Clock: fake, ...})
//	for attempt := 0; attempt < 5; attempt++ {
//	    client.Tick(0)
//	    fake.Advance(5 * time.Second)
//	}
//
// Goroutines that block on a FakeClock (Sleep, After, tickers) register
// pending waiters. WaitForTimers blocks until a given number are
// registered, removing the race between registration and Advance.
package clock
