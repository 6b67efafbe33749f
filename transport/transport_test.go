// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "testing"

func TestNormalizeAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		address string
		want    string
	}{
		{"localhost", "localhost:1313"},
		{"localhost:9000", "localhost:9000"},
		{"10.0.0.5", "10.0.0.5:1313"},
		{"[::1]", "[::1]:1313"},
		{"::1", "[::1]:1313"},
		{"[::1]:9000", "[::1]:9000"},
	}
	for _, test := range tests {
		if got := NormalizeAddress(test.address, DefaultPort); got != test.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", test.address, got, test.want)
		}
	}
}

func TestListenAndNewDialerKinds(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{KindTCP, KindWebSocket} {
		listener, err := Listen(kind, "127.0.0.1:0", "")
		if err != nil {
			t.Fatalf("Listen(%q) error: %v", kind, err)
		}
		dialer, err := NewDialer(kind, DialerOptions{})
		if err != nil {
			t.Fatalf("NewDialer(%q) error: %v", kind, err)
		}
		roundTrip(t, listener, dialer)
		listener.Close()
	}

	if _, err := Listen("carrier-pigeon", "127.0.0.1:0", ""); err == nil {
		t.Error("Listen(unknown) succeeded, want error")
	}
	if _, err := NewDialer("carrier-pigeon", DialerOptions{}); err == nil {
		t.Error("NewDialer(unknown) succeeded, want error")
	}
}
