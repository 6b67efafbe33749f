// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/remotesession/backchannel"
	"github.com/bureau-foundation/remotesession/lib/capture"
	"github.com/bureau-foundation/remotesession/lib/clock"
	"github.com/bureau-foundation/remotesession/lib/display"
	"github.com/bureau-foundation/remotesession/lib/imagecodec"
	"github.com/bureau-foundation/remotesession/lib/metrics"
	"github.com/bureau-foundation/remotesession/osc"
)

const (
	// FramebufferType identifies the framebuffer channel.
	FramebufferType = "rs.framebuffer"

	// ScreenAddress carries one encoded frame: width, height and the
	// encoded image bytes.
	ScreenAddress = "/Screen"
)

// FramebufferOptions tunes the sending side.
type FramebufferOptions struct {
	// Quality is the encoder quality, 1 to 100.
	Quality int

	// FramerateCap limits frames sent per second. Zero sends on every
	// tick that has a new frame.
	FramerateCap int

	// Codec encodes outgoing frames and decodes incoming payloads whose
	// codec cannot be detected. Defaults to JPEG.
	Codec imagecodec.Codec

	// SkipUnchanged suppresses a frame whose pixels hash identically to
	// the previous one sent.
	SkipUnchanged bool

	// SendImages gates sending entirely.
	SendImages bool
}

// DefaultFramebufferOptions returns the options a host uses when none
// are configured.
func DefaultFramebufferOptions() FramebufferOptions {
	return FramebufferOptions{
		Quality:      85,
		FramerateCap: 30,
		Codec:        imagecodec.JPEG,
		SendImages:   true,
	}
}

// FramebufferConfig describes a framebuffer channel.
type FramebufferConfig struct {
	Handle *Handle
	Mode   Mode

	Options FramebufferOptions

	// Source supplies frames in ModeSend. Required for sending.
	Source capture.Source

	// Sink receives decoded frames in ModeReceive. Defaults to a
	// MemorySink.
	Sink display.Sink

	// Executor runs encode and decode tasks. Defaults to a goroutine
	// per task.
	Executor Executor

	Clock           clock.Clock
	TeardownTimeout time.Duration
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// pendingImage is a decoded frame waiting for the next receive tick.
type pendingImage struct {
	width, height int
	pixels        []byte
}

// FramebufferChannel streams encoded frames from a host to a client.
//
// On the sending side, Tick paces capture against the framerate cap
// and hands each new frame to the executor for encoding; the encoder
// task sends the /Screen message itself.
//
// On the receiving side, /Screen messages are coalesced to the newest
// one by the connection and decoded on the executor. Whichever decode
// completes last fills the single pending slot. Tick uploads the
// pending frame into the hidden one of two display images and then
// flips which is visible, so readers of VisibleImage never see a
// partially uploaded image.
type FramebufferChannel struct {
	handle   *Handle
	mode     Mode
	options  FramebufferOptions
	executor Executor
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
	tasks    inflight
	closed   atomic.Bool

	// Send side; touched only by Tick.
	source        capture.Source
	cancelCapture context.CancelFunc
	lastSent      time.Time
	lastDigest    [32]byte
	haveDigest    bool

	// Receive side.
	sink      display.Sink
	imageMu   sync.Mutex
	pending   *pendingImage
	slots     [2]display.Image
	visible   atomic.Int32
	displayed atomic.Bool
	observers []func(display.Image)
}

// NewFramebufferChannel creates the channel. In ModeSend it starts the
// capture source; in ModeReceive it registers for /Screen on the
// handle's connection with a queue depth of one.
func NewFramebufferChannel(config FramebufferConfig) (*FramebufferChannel, error) {
	if config.Options.Codec == nil {
		config.Options.Codec = imagecodec.JPEG
	}
	if config.Executor == nil {
		config.Executor = goExecutor{}
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.TeardownTimeout <= 0 {
		config.TeardownTimeout = DefaultTeardownTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Sink == nil {
		config.Sink = &display.MemorySink{}
	}

	c := &FramebufferChannel{
		handle:   config.Handle,
		mode:     config.Mode,
		options:  config.Options,
		executor: config.Executor,
		clock:    config.Clock,
		logger:   config.Logger.With("channel", FramebufferType, "mode", config.Mode.String()),
		metrics:  config.Metrics,
		timeout:  config.TeardownTimeout,
		source:   config.Source,
		sink:     config.Sink,
	}

	switch config.Mode {
	case ModeSend:
		if c.source == nil {
			return nil, fmt.Errorf("creating framebuffer sender: capture source is required")
		}
		ctx, cancel := context.WithCancel(context.Background())
		if err := c.source.Start(ctx); err != nil {
			cancel()
			return nil, fmt.Errorf("starting capture: %w", err)
		}
		c.cancelCapture = cancel
	case ModeReceive:
		connection, ok := c.handle.Acquire()
		if !ok {
			return nil, fmt.Errorf("creating framebuffer receiver: connection is not available")
		}
		connection.SetMessageOptions(ScreenAddress, 1)
		connection.DispatchMap().GetAddressHandler(ScreenAddress).AddHandlerFunc(
			func(message *osc.Message, _ *backchannel.DispatchMap) { c.receiveScreen(message) })
	default:
		return nil, fmt.Errorf("creating framebuffer channel: unknown mode %d", config.Mode)
	}
	return c, nil
}

// Type returns FramebufferType.
func (c *FramebufferChannel) Type() string { return FramebufferType }

// Mode returns the direction the channel was created with.
func (c *FramebufferChannel) Mode() Mode { return c.mode }

// Tick sends the next frame (ModeSend) or presents the newest decoded
// frame (ModeReceive).
func (c *FramebufferChannel) Tick(time.Duration) {
	if c.closed.Load() {
		return
	}
	if c.mode == ModeSend {
		c.tickSend()
	} else {
		c.tickReceive()
	}
}

func (c *FramebufferChannel) tickSend() {
	if !c.options.SendImages {
		return
	}
	now := c.clock.Now()
	if c.options.FramerateCap > 0 && !c.lastSent.IsZero() {
		interval := time.Second / time.Duration(c.options.FramerateCap)
		if now.Sub(c.lastSent) < interval {
			return
		}
	}
	if _, ok := c.handle.Acquire(); !ok {
		return
	}
	frame, ok := c.source.LatestFrame()
	if !ok {
		return
	}
	c.lastSent = now

	if c.options.SkipUnchanged {
		digest := blake3.Sum256(frame.Pixels)
		if c.haveDigest && digest == c.lastDigest {
			c.metrics.FrameSkipped(metrics.ReasonUnchanged)
			return
		}
		c.lastDigest = digest
		c.haveDigest = true
	}

	if !c.tasks.submit(c.executor, func() { c.encodeAndSend(frame) }) {
		c.metrics.FrameSkipped(metrics.ReasonSaturated)
		c.metrics.TaskRejected()
	}
}

// encodeAndSend runs on the executor.
func (c *FramebufferChannel) encodeAndSend(frame capture.Frame) {
	imagecodec.ForceOpaque(frame.Pixels)
	start := c.clock.Now()
	encoded, err := c.options.Codec.Encode(frame.Pixels, frame.Width, frame.Height, c.options.Quality)
	if err != nil {
		c.logger.Warn("encoding frame failed", "sequence", frame.Sequence, "error", err)
		c.metrics.FrameSkipped(metrics.ReasonEncodeError)
		return
	}
	elapsed := c.clock.Since(start)

	connection, ok := c.handle.Acquire()
	if !ok {
		return
	}
	message := osc.NewMessage(ScreenAddress).
		AddInt32(int32(frame.Width)).
		AddInt32(int32(frame.Height)).
		AddBlob(encoded)
	if err := connection.SendPacket(message); err != nil {
		c.logger.Debug("sending frame failed", "sequence", frame.Sequence, "error", err)
		return
	}
	c.metrics.FrameSent(elapsed)
}

// receiveScreen runs on the goroutine that drains the connection.
func (c *FramebufferChannel) receiveScreen(message *osc.Message) {
	if c.closed.Load() {
		return
	}
	width, height, data, err := parseScreen(message)
	if err != nil {
		c.logger.Warn("dropping malformed screen message", "message", message.String(), "error", err)
		c.metrics.FrameDropped(metrics.ReasonDecodeError)
		return
	}

	if !c.tasks.submit(c.executor, func() { c.decode(int(width), int(height), data) }) {
		c.metrics.FrameDropped(metrics.ReasonSaturated)
		c.metrics.TaskRejected()
	}
}

func parseScreen(message *osc.Message) (width, height int32, data []byte, err error) {
	if width, err = message.ReadInt32(); err != nil {
		return 0, 0, nil, err
	}
	if height, err = message.ReadInt32(); err != nil {
		return 0, 0, nil, err
	}
	if data, err = message.ReadBlob(); err != nil {
		return 0, 0, nil, err
	}
	if width <= 0 || height <= 0 {
		return 0, 0, nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	return width, height, data, nil
}

// decode runs on the executor.
func (c *FramebufferChannel) decode(width, height int, data []byte) {
	codec, ok := imagecodec.Detect(data)
	if !ok {
		codec = c.options.Codec
	}
	start := c.clock.Now()
	pixels, err := codec.Decode(data, width, height)
	if err != nil {
		c.logger.Warn("decoding frame failed",
			"codec", codec.Name(), "width", width, "height", height, "error", err)
		c.metrics.FrameDropped(metrics.ReasonDecodeError)
		return
	}
	c.metrics.FrameDecoded(c.clock.Since(start))

	c.imageMu.Lock()
	defer c.imageMu.Unlock()
	if c.pending != nil {
		c.metrics.FrameDropped(metrics.ReasonSuperseded)
	}
	c.pending = &pendingImage{width: width, height: height, pixels: pixels}
}

func (c *FramebufferChannel) tickReceive() {
	c.imageMu.Lock()
	next := c.pending
	c.pending = nil
	hidden := 1 - c.visible.Load()
	slot := c.slots[hidden]
	c.imageMu.Unlock()
	if next == nil {
		return
	}

	if slot == nil || slot.Width() != next.width || slot.Height() != next.height {
		created, err := c.sink.CreateImage(next.width, next.height)
		if err != nil {
			c.logger.Warn("creating display image failed",
				"width", next.width, "height", next.height, "error", err)
			c.metrics.FrameDropped(metrics.ReasonUploadError)
			return
		}
		slot = created
	}
	if err := c.sink.Upload(slot, next.pixels); err != nil {
		c.logger.Warn("uploading frame failed", "error", err)
		c.metrics.FrameDropped(metrics.ReasonUploadError)
		return
	}

	c.imageMu.Lock()
	c.slots[hidden] = slot
	c.visible.Store(hidden)
	c.displayed.Store(true)
	observers := c.observers
	c.imageMu.Unlock()

	c.metrics.FrameDisplayed()
	for _, observer := range observers {
		observer(slot)
	}
}

// VisibleImage returns the image most recently presented. ok is false
// until the first frame has been displayed.
func (c *FramebufferChannel) VisibleImage() (image display.Image, ok bool) {
	if !c.displayed.Load() {
		return nil, false
	}
	c.imageMu.Lock()
	defer c.imageMu.Unlock()
	return c.slots[c.visible.Load()], true
}

// OnImage registers a function called on the tick goroutine after each
// newly presented frame.
func (c *FramebufferChannel) OnImage(observer func(display.Image)) {
	c.imageMu.Lock()
	defer c.imageMu.Unlock()
	c.observers = append(c.observers[:len(c.observers):len(c.observers)], observer)
}

// InFlight returns the number of encode or decode tasks not yet
// finished.
func (c *FramebufferChannel) InFlight() int { return c.tasks.Count() }

// Close stops capture and waits for in-flight tasks. It returns
// ErrTeardownTimeout if they do not finish in time.
func (c *FramebufferChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.cancelCapture != nil {
		c.cancelCapture()
		c.source.Stop()
	}
	if err := c.tasks.wait(c.clock, c.timeout); err != nil {
		c.logger.Warn("framebuffer teardown incomplete", "in_flight", c.tasks.Count())
		return fmt.Errorf("closing framebuffer channel: %w", err)
	}
	return nil
}
