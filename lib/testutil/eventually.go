// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"runtime"
	"time"
)

// pollInterval is how long Eventually and Tick yield between checks.
const pollInterval = time.Millisecond

// Eventually polls condition until it returns true or timeout elapses,
// failing the test on timeout.
func Eventually(t TestingT, timeout time.Duration, condition func() bool, msgAndArgs ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout) //nolint:realclock test hang prevention
	for !condition() {
		if time.Now().After(deadline) { //nolint:realclock test hang prevention
			t.Fatalf("condition not met within %v: %s", timeout, formatMessage(msgAndArgs))
		}
		runtime.Gosched()
		time.Sleep(pollInterval) //nolint:realclock test hang prevention
	}
}

// Ticker is anything driven by a periodic Tick call: session roles and
// channels.
type Ticker interface {
	Tick(deltaTime time.Duration)
}

// Tick calls Tick on every ticker in order, repeatedly, until condition
// returns true or timeout elapses.
func Tick(t TestingT, timeout time.Duration, condition func() bool, tickers ...Ticker) {
	t.Helper()
	Eventually(t, timeout, func() bool {
		for _, ticker := range tickers {
			ticker.Tick(pollInterval)
		}
		return condition()
	}, "ticking %d tickers", len(tickers))
}
