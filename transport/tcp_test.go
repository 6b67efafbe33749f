// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestTCPListener_Address(t *testing.T) {
	t.Parallel()
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	address := listener.Address()
	if !strings.HasPrefix(address, "127.0.0.1:") {
		t.Errorf("Address() = %q, want 127.0.0.1:port", address)
	}
}

// roundTrip dials listener, writes a payload in each direction, and
// checks both arrive intact.
func roundTrip(t *testing.T, listener Listener, dialer Dialer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	serverSide := make(chan result, 1)
	go func() {
		connection, err := listener.Accept(ctx)
		if err != nil {
			serverSide <- result{err: err}
			return
		}
		defer connection.Close()
		buffer := make([]byte, 5)
		if _, err := io.ReadFull(connection, buffer); err != nil {
			serverSide <- result{err: err}
			return
		}
		_, err = connection.Write([]byte("world"))
		serverSide <- result{data: buffer, err: err}
	}()

	connection, err := dialer.DialContext(ctx, listener.Address())
	if err != nil {
		t.Fatalf("DialContext() error: %v", err)
	}
	defer connection.Close()

	if _, err := connection.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	reply := make([]byte, 5)
	if _, err := io.ReadFull(connection, reply); err != nil {
		t.Fatalf("ReadFull() error: %v", err)
	}
	if string(reply) != "world" {
		t.Errorf("client read %q, want %q", reply, "world")
	}

	got := <-serverSide
	if got.err != nil {
		t.Fatalf("server side error: %v", got.err)
	}
	if string(got.data) != "hello" {
		t.Errorf("server read %q, want %q", got.data, "hello")
	}
}

func TestTCPRoundTrip(t *testing.T) {
	t.Parallel()
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	roundTrip(t, listener, &TCPDialer{Timeout: 5 * time.Second, ReceiveBufferSize: 4 << 20})
}

func TestTCPListener_AcceptCancelled(t *testing.T) {
	t.Parallel()
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	accepted := make(chan error, 1)
	go func() {
		_, err := listener.Accept(ctx)
		accepted <- err
	}()
	cancel()

	select {
	case err := <-accepted:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Accept() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Accept() did not return after cancel")
	}

	// The listener stays usable after a cancelled Accept.
	roundTrip(t, listener, &TCPDialer{})
}

func TestTCPDialer_Refused(t *testing.T) {
	t.Parallel()
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	address := listener.Address()
	listener.Close()

	dialer := &TCPDialer{Timeout: time.Second}
	if _, err := dialer.DialContext(context.Background(), address); err == nil {
		t.Error("DialContext() to closed port succeeded, want error")
	}
}
