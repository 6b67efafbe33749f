// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/remotesession/backchannel"
	"github.com/bureau-foundation/remotesession/lib/capture"
	"github.com/bureau-foundation/remotesession/lib/clock"
	"github.com/bureau-foundation/remotesession/lib/display"
	"github.com/bureau-foundation/remotesession/lib/imagecodec"
	"github.com/bureau-foundation/remotesession/osc"
)

// queuedSource hands out frames pushed by the test, one per
// LatestFrame call.
type queuedSource struct {
	mu      sync.Mutex
	frames  []capture.Frame
	started bool
	stopped bool
}

func (q *queuedSource) Start(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.started = true
	return nil
}

func (q *queuedSource) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
}

func (q *queuedSource) LatestFrame() (capture.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return capture.Frame{}, false
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	return frame, true
}

func (q *queuedSource) push(width, height int, pixels []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frames = append(q.frames, capture.Frame{
		Width: width, Height: height, Pixels: pixels, Sequence: uint64(len(q.frames) + 1),
	})
}

func fill(width, height int, r, g, b, a byte) []byte {
	pixels := make([]byte, width*height*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = r, g, b, a
	}
	return pixels
}

func newSender(t *testing.T, connection *backchannel.Connection, source capture.Source, executor Executor, options FramebufferOptions) *FramebufferChannel {
	t.Helper()
	sender, err := NewFramebufferChannel(FramebufferConfig{
		Handle:   NewHandle(connection),
		Mode:     ModeSend,
		Options:  options,
		Source:   source,
		Executor: executor,
	})
	if err != nil {
		t.Fatalf("NewFramebufferChannel(send) error: %v", err)
	}
	t.Cleanup(func() { sender.Close() })
	return sender
}

func newReceiver(t *testing.T, connection *backchannel.Connection, sink display.Sink, executor Executor) *FramebufferChannel {
	t.Helper()
	receiver, err := NewFramebufferChannel(FramebufferConfig{
		Handle:   NewHandle(connection),
		Mode:     ModeReceive,
		Options:  FramebufferOptions{Codec: imagecodec.Zstd},
		Sink:     sink,
		Executor: executor,
	})
	if err != nil {
		t.Fatalf("NewFramebufferChannel(receive) error: %v", err)
	}
	t.Cleanup(func() { receiver.Close() })
	return receiver
}

func visiblePixels(t *testing.T, receiver *FramebufferChannel) []byte {
	t.Helper()
	image, ok := receiver.VisibleImage()
	if !ok {
		t.Fatal("VisibleImage() ok = false, want a presented frame")
	}
	return image.(*display.MemoryImage).Pixels()
}

func TestFrameDeliveredOpaque(t *testing.T) {
	t.Parallel()
	host, client := linkedConnections(t)

	source := &queuedSource{}
	source.push(4, 4, fill(4, 4, 10, 20, 30, 0))
	options := FramebufferOptions{Quality: 100, Codec: imagecodec.Zstd, SendImages: true}
	sender := newSender(t, host, source, inlineExecutor{}, options)

	sink := &display.MemorySink{}
	receiver := newReceiver(t, client, sink, inlineExecutor{})
	var observed []uint64
	receiver.OnImage(func(image display.Image) { observed = append(observed, image.ID()) })

	if _, ok := receiver.VisibleImage(); ok {
		t.Fatal("VisibleImage() before any frame = true, want false")
	}

	sender.Tick(time.Millisecond)
	drainUntil(t, client, func() bool {
		receiver.Tick(time.Millisecond)
		_, ok := receiver.VisibleImage()
		return ok
	}, "waiting for the first frame")

	if got, want := visiblePixels(t, receiver), fill(4, 4, 10, 20, 30, 255); !bytes.Equal(got, want) {
		t.Errorf("visible pixels = %v, want %v", got[:8], want[:8])
	}
	image, _ := receiver.VisibleImage()
	if image.Width() != 4 || image.Height() != 4 {
		t.Errorf("visible size = %dx%d, want 4x4", image.Width(), image.Height())
	}
	if len(observed) != 1 || observed[0] != image.ID() {
		t.Errorf("observers saw %v, want [%d]", observed, image.ID())
	}
	if !source.started {
		t.Error("capture source was not started")
	}
}

func TestScreenMessagesCoalesceToNewest(t *testing.T) {
	t.Parallel()
	host, client := linkedConnections(t)

	executor := &manualExecutor{}
	receiver := newReceiver(t, client, &display.MemorySink{}, executor)

	marker := newSyncMarker(host, client)

	for _, shade := range []byte{1, 2, 3} {
		encoded, err := imagecodec.Zstd.Encode(fill(2, 2, shade, shade, shade, 255), 2, 2, 100)
		if err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
		message := osc.NewMessage(ScreenAddress).AddInt32(2).AddInt32(2).AddBlob(encoded)
		if err := host.SendPacket(message); err != nil {
			t.Fatalf("SendPacket() error: %v", err)
		}
	}
	marker.sync(t)

	if got := executor.queued(); got != 1 {
		t.Fatalf("decode tasks queued = %d, want 1 (older frames coalesced)", got)
	}
	executor.run(0)
	receiver.Tick(time.Millisecond)
	if got, want := visiblePixels(t, receiver), fill(2, 2, 3, 3, 3, 255); !bytes.Equal(got, want) {
		t.Errorf("visible pixels = %v, want newest frame %v", got, want)
	}
}

func TestLastCompletedDecodeWins(t *testing.T) {
	t.Parallel()
	host, client := linkedConnections(t)

	executor := &manualExecutor{}
	receiver := newReceiver(t, client, &display.MemorySink{}, executor)

	for index, shade := range []byte{50, 90} {
		encoded, err := imagecodec.LZ4.Encode(fill(2, 2, shade, shade, shade, 255), 2, 2, 100)
		if err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
		if err := host.SendPacket(osc.NewMessage(ScreenAddress).AddInt32(2).AddInt32(2).AddBlob(encoded)); err != nil {
			t.Fatalf("SendPacket() error: %v", err)
		}
		drainUntil(t, client, func() bool { return executor.queued() == index+1 }, "waiting for decode task")
	}

	// Complete the newer frame first; the older one finishes last and
	// is what gets presented.
	executor.run(1)
	executor.run(0)
	receiver.Tick(time.Millisecond)
	if got, want := visiblePixels(t, receiver), fill(2, 2, 50, 50, 50, 255); !bytes.Equal(got, want) {
		t.Errorf("visible pixels = %v, want last completed frame %v", got, want)
	}
}

func TestDoubleBufferAlternates(t *testing.T) {
	t.Parallel()
	host, client := linkedConnections(t)

	sink := &display.MemorySink{}
	receiver := newReceiver(t, client, sink, inlineExecutor{})

	var ids []uint64
	for index, shade := range []byte{10, 20, 30} {
		encoded, err := imagecodec.Zstd.Encode(fill(3, 2, shade, 0, 0, 255), 3, 2, 100)
		if err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
		if err := host.SendPacket(osc.NewMessage(ScreenAddress).AddInt32(3).AddInt32(2).AddBlob(encoded)); err != nil {
			t.Fatalf("SendPacket() error: %v", err)
		}
		drainUntil(t, client, func() bool {
			receiver.Tick(time.Millisecond)
			image, ok := receiver.VisibleImage()
			return ok && image.(*display.MemoryImage).Pixels()[0] == shade
		}, "waiting for frame %d", index)
		image, _ := receiver.VisibleImage()
		ids = append(ids, image.ID())
	}

	if ids[0] == ids[1] || ids[0] != ids[2] {
		t.Errorf("visible image IDs = %v, want alternating between two images", ids)
	}
	if got := sink.Created(); got != 2 {
		t.Errorf("sink.Created() = %d, want 2", got)
	}
}

func TestResizeReallocatesHiddenImage(t *testing.T) {
	t.Parallel()
	host, client := linkedConnections(t)

	sink := &display.MemorySink{}
	receiver := newReceiver(t, client, sink, inlineExecutor{})
	marker := newSyncMarker(host, client)

	for _, width := range []int{2, 2, 5} {
		encoded, err := imagecodec.Zstd.Encode(fill(width, 1, 1, 1, 1, 255), width, 1, 100)
		if err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
		if err := host.SendPacket(osc.NewMessage(ScreenAddress).AddInt32(int32(width)).AddInt32(1).AddBlob(encoded)); err != nil {
			t.Fatalf("SendPacket() error: %v", err)
		}
		marker.sync(t)
		receiver.Tick(time.Millisecond)
		image, ok := receiver.VisibleImage()
		if !ok || image.Width() != width {
			t.Fatalf("VisibleImage() = %v, %v, want a %d-wide image", image, ok, width)
		}
	}
	if got := sink.Created(); got != 3 {
		t.Errorf("sink.Created() = %d, want 3", got)
	}
}

func TestMalformedScreenDropped(t *testing.T) {
	t.Parallel()
	host, client := linkedConnections(t)

	executor := &manualExecutor{}
	receiver := newReceiver(t, client, &display.MemorySink{}, executor)

	marker := newSyncMarker(host, client)
	client.SetMessageOptions(ScreenAddress, 0)

	bad := []*osc.Message{
		osc.NewMessage(ScreenAddress).AddInt32(2),
		osc.NewMessage(ScreenAddress).AddInt32(0).AddInt32(2).AddBlob([]byte{1}),
		osc.NewMessage(ScreenAddress).AddString("wide").AddInt32(2).AddBlob([]byte{1}),
	}
	for _, message := range bad {
		if err := host.SendPacket(message); err != nil {
			t.Fatalf("SendPacket() error: %v", err)
		}
	}
	marker.sync(t)

	if got := executor.queued(); got != 0 {
		t.Errorf("decode tasks queued = %d, want 0", got)
	}
	receiver.Tick(time.Millisecond)
	if _, ok := receiver.VisibleImage(); ok {
		t.Error("VisibleImage() after malformed frames = true, want false")
	}
}

func TestUndecodablePayloadKeepsPreviousImage(t *testing.T) {
	t.Parallel()
	host, client := linkedConnections(t)
	receiver := newReceiver(t, client, &display.MemorySink{}, inlineExecutor{})
	marker := newSyncMarker(host, client)

	encoded, err := imagecodec.Zstd.Encode(fill(2, 2, 7, 7, 7, 255), 2, 2, 100)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if err := host.SendPacket(osc.NewMessage(ScreenAddress).AddInt32(2).AddInt32(2).AddBlob(encoded)); err != nil {
		t.Fatalf("SendPacket() error: %v", err)
	}
	drainUntil(t, client, func() bool {
		receiver.Tick(time.Millisecond)
		_, ok := receiver.VisibleImage()
		return ok
	})
	before, _ := receiver.VisibleImage()

	garbage := []byte{0x28, 0xB5, 0x2F, 0xFD, 0xFF, 0xFF}
	if err := host.SendPacket(osc.NewMessage(ScreenAddress).AddInt32(2).AddInt32(2).AddBlob(garbage)); err != nil {
		t.Fatalf("SendPacket() error: %v", err)
	}
	marker.sync(t)
	receiver.Tick(time.Millisecond)

	after, _ := receiver.VisibleImage()
	if after.ID() != before.ID() {
		t.Errorf("visible image changed from %d to %d after an undecodable frame", before.ID(), after.ID())
	}
}

func TestSendPacing(t *testing.T) {
	t.Parallel()
	host, _ := linkedConnections(t)

	fake := clock.Fake(time.Unix(1000, 0))
	source := &queuedSource{}
	for range 5 {
		source.push(1, 1, fill(1, 1, 0, 0, 0, 255))
	}
	executor := &manualExecutor{}
	sender, err := NewFramebufferChannel(FramebufferConfig{
		Handle:   NewHandle(host),
		Mode:     ModeSend,
		Options:  FramebufferOptions{Quality: 50, FramerateCap: 10, SendImages: true},
		Source:   source,
		Executor: executor,
		Clock:    fake,
	})
	if err != nil {
		t.Fatalf("NewFramebufferChannel() error: %v", err)
	}

	sender.Tick(time.Millisecond)
	sender.Tick(time.Millisecond)
	if got := executor.queued(); got != 1 {
		t.Fatalf("encodes after two immediate ticks = %d, want 1", got)
	}
	fake.Advance(99 * time.Millisecond)
	sender.Tick(time.Millisecond)
	if got := executor.queued(); got != 1 {
		t.Fatalf("encodes at 99ms = %d, want 1", got)
	}
	fake.Advance(time.Millisecond)
	sender.Tick(time.Millisecond)
	if got := executor.queued(); got != 2 {
		t.Fatalf("encodes at 100ms = %d, want 2", got)
	}
	if got := sender.InFlight(); got != 2 {
		t.Errorf("InFlight() = %d, want 2", got)
	}

	for executor.queued() > 0 {
		executor.run(0)
	}
	if err := sender.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if !source.stopped {
		t.Error("Close() did not stop the capture source")
	}
}

func TestSendOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		options FramebufferOptions
		frames  [][]byte
		refuse  bool
		want    int
	}{
		{
			name:    "images disabled",
			options: FramebufferOptions{SendImages: false},
			frames:  [][]byte{fill(1, 1, 1, 1, 1, 255)},
			want:    0,
		},
		{
			name:    "skip unchanged",
			options: FramebufferOptions{SendImages: true, SkipUnchanged: true},
			frames: [][]byte{
				fill(1, 1, 1, 1, 1, 255),
				fill(1, 1, 1, 1, 1, 255),
				fill(1, 1, 2, 2, 2, 255),
				fill(1, 1, 2, 2, 2, 255),
			},
			want: 2,
		},
		{
			name:    "changed frames all sent",
			options: FramebufferOptions{SendImages: true},
			frames: [][]byte{
				fill(1, 1, 1, 1, 1, 255),
				fill(1, 1, 1, 1, 1, 255),
			},
			want: 2,
		},
		{
			name:    "saturated executor",
			options: FramebufferOptions{SendImages: true},
			frames:  [][]byte{fill(1, 1, 1, 1, 1, 255)},
			refuse:  true,
			want:    0,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			host, _ := linkedConnections(t)
			source := &queuedSource{}
			for _, pixels := range test.frames {
				source.push(1, 1, pixels)
			}
			executor := &manualExecutor{refuse: test.refuse}
			sender := newSender(t, host, source, executor, test.options)
			for range test.frames {
				sender.Tick(time.Millisecond)
			}
			if got := executor.queued(); got != test.want {
				t.Errorf("encodes queued = %d, want %d", got, test.want)
			}
			for executor.queued() > 0 {
				executor.run(0)
			}
		})
	}
}

func TestSendWithoutConnectionKeepsFrame(t *testing.T) {
	t.Parallel()
	host, _ := linkedConnections(t)

	source := &queuedSource{}
	source.push(1, 1, fill(1, 1, 1, 1, 1, 255))
	executor := &manualExecutor{}
	handle := NewHandle(host)
	sender, err := NewFramebufferChannel(FramebufferConfig{
		Handle:   handle,
		Mode:     ModeSend,
		Options:  FramebufferOptions{SendImages: true},
		Source:   source,
		Executor: executor,
	})
	if err != nil {
		t.Fatalf("NewFramebufferChannel() error: %v", err)
	}
	defer sender.Close()

	handle.Invalidate()
	sender.Tick(time.Millisecond)
	if got := executor.queued(); got != 0 {
		t.Errorf("encodes without a connection = %d, want 0", got)
	}
	if len(source.frames) != 1 {
		t.Errorf("source frames = %d, want the frame left unconsumed", len(source.frames))
	}
}

func TestCloseTimesOutOnStuckTask(t *testing.T) {
	t.Parallel()
	host, _ := linkedConnections(t)

	fake := clock.Fake(time.Unix(0, 0))
	source := &queuedSource{}
	source.push(1, 1, fill(1, 1, 1, 1, 1, 255))
	executor := &manualExecutor{}
	sender, err := NewFramebufferChannel(FramebufferConfig{
		Handle:          NewHandle(host),
		Mode:            ModeSend,
		Options:         FramebufferOptions{SendImages: true},
		Source:          source,
		Executor:        executor,
		Clock:           fake,
		TeardownTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewFramebufferChannel() error: %v", err)
	}
	sender.Tick(time.Millisecond)

	result := make(chan error, 1)
	go func() { result <- sender.Close() }()
	fake.WaitForTimers(1)
	fake.Advance(time.Second)
	select {
	case err := <-result:
		if !errors.Is(err, ErrTeardownTimeout) {
			t.Errorf("Close() = %v, want ErrTeardownTimeout", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("Close() did not return after the teardown timeout")
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
}

func TestFramebufferConstructorErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewFramebufferChannel(FramebufferConfig{Mode: ModeSend}); err == nil {
		t.Error("send mode without a source succeeded, want error")
	}
	if _, err := NewFramebufferChannel(FramebufferConfig{Mode: ModeReceive, Handle: NewHandle(nil)}); err == nil {
		t.Error("receive mode without a connection succeeded, want error")
	}
	if _, err := NewFramebufferChannel(FramebufferConfig{Mode: Mode(9), Source: &queuedSource{}}); err == nil {
		t.Error("unknown mode succeeded, want error")
	}
}
