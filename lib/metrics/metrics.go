// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics defines the Prometheus collectors for a remote session
// and an HTTP server that exposes them.
//
// Every method on *Metrics is safe to call on a nil receiver, so
// components accept an optional *Metrics in their config and record
// unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "remotesession"

// Metrics holds the collectors registered for one process.
type Metrics struct {
	messagesSent      *prometheus.CounterVec
	messagesReceived  *prometheus.CounterVec
	messagesCoalesced *prometheus.CounterVec
	messagesUnhandled prometheus.Counter
	bytesSent         prometheus.Counter
	bytesReceived     prometheus.Counter

	connectAttempts *prometheus.CounterVec
	connections     *prometheus.CounterVec
	disconnects     *prometheus.CounterVec
	connected       *prometheus.GaugeVec

	framesSent      prometheus.Counter
	framesSkipped   *prometheus.CounterVec
	framesDisplayed prometheus.Counter
	framesDropped   *prometheus.CounterVec
	encodeDuration  prometheus.Histogram
	decodeDuration  prometheus.Histogram

	inputEvents   *prometheus.CounterVec
	tasksRejected prometheus.Counter
}

// New creates the collectors and registers them with registerer.
// Registering twice with the same registerer panics, as promauto does.
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	frameBuckets := []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

	return &Metrics{
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_sent_total",
			Help:      "Messages written to the connection, by address.",
		}, []string{"address"}),
		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_received_total",
			Help:      "Messages read from the connection, by address.",
		}, []string{"address"}),
		messagesCoalesced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_coalesced_total",
			Help:      "Pending messages dropped because a newer message for the same address arrived.",
		}, []string{"address"}),
		messagesUnhandled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_unhandled_total",
			Help:      "Messages discarded because no handler was registered for their address.",
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sent_bytes_total",
			Help:      "Framed bytes written to the transport.",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "received_bytes_total",
			Help:      "Framed bytes read from the transport.",
		}),

		connectAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connect_attempts_total",
			Help:      "Connection attempts started by the client, by outcome.",
		}, []string{"outcome"}),
		connections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_total",
			Help:      "Connections established, by role.",
		}, []string{"role"}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "disconnects_total",
			Help:      "Connections dropped after the transport closed, by role.",
		}, []string{"role"}),
		connected: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "connected",
			Help:      "1 while the role holds a live connection.",
		}, []string{"role"}),

		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_sent_total",
			Help:      "Encoded frames sent on the framebuffer channel.",
		}),
		framesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_skipped_total",
			Help:      "Captured frames not sent, by reason.",
		}, []string{"reason"}),
		framesDisplayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_displayed_total",
			Help:      "Decoded frames published to the visible display slot.",
		}),
		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_dropped_total",
			Help:      "Received frames never displayed, by reason.",
		}, []string{"reason"}),
		encodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "frame_encode_seconds",
			Help:      "Time spent compressing one frame.",
			Buckets:   frameBuckets,
		}),
		decodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "frame_decode_seconds",
			Help:      "Time spent decompressing one frame.",
			Buckets:   frameBuckets,
		}),

		inputEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "input_events_total",
			Help:      "Input events by name and direction (recorded or played).",
		}, []string{"event", "direction"}),
		tasksRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "background_tasks_rejected_total",
			Help:      "Background tasks dropped because the worker pool was saturated.",
		}),
	}
}

// MessageSent records one outbound message of size bytes, framing
// included.
func (m *Metrics) MessageSent(address string, size int) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(address).Inc()
	m.bytesSent.Add(float64(size))
}

// MessageReceived records one inbound message of size bytes.
func (m *Metrics) MessageReceived(address string, size int) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(address).Inc()
	m.bytesReceived.Add(float64(size))
}

// MessageCoalesced records a pending message replaced by a newer one.
func (m *Metrics) MessageCoalesced(address string) {
	if m == nil {
		return
	}
	m.messagesCoalesced.WithLabelValues(address).Inc()
}

// MessageUnhandled records a message with no registered handler.
func (m *Metrics) MessageUnhandled() {
	if m == nil {
		return
	}
	m.messagesUnhandled.Inc()
}

// Outcome labels for ConnectAttempt.
const (
	OutcomeConnected = "connected"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
)

// ConnectAttempt records the outcome of one client dial.
func (m *Metrics) ConnectAttempt(outcome string) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(outcome).Inc()
}

// Connected records a new connection for role and sets its gauge.
func (m *Metrics) Connected(role string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(role).Inc()
	m.connected.WithLabelValues(role).Set(1)
}

// Disconnected records a dropped connection for role and clears its
// gauge.
func (m *Metrics) Disconnected(role string) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(role).Inc()
	m.connected.WithLabelValues(role).Set(0)
}

// FrameSent records one frame sent and how long its encode took.
func (m *Metrics) FrameSent(encode time.Duration) {
	if m == nil {
		return
	}
	m.framesSent.Inc()
	m.encodeDuration.Observe(encode.Seconds())
}

// Reasons for FrameSkipped and FrameDropped.
const (
	ReasonUnchanged   = "unchanged"
	ReasonEncodeError = "encode_error"
	ReasonDecodeError = "decode_error"
	ReasonSuperseded  = "superseded"
	ReasonSaturated   = "saturated"
	ReasonUploadError = "upload_error"
)

// FrameSkipped records a captured frame that was not sent.
func (m *Metrics) FrameSkipped(reason string) {
	if m == nil {
		return
	}
	m.framesSkipped.WithLabelValues(reason).Inc()
}

// FrameDecoded records the time one received frame took to decode.
func (m *Metrics) FrameDecoded(decode time.Duration) {
	if m == nil {
		return
	}
	m.decodeDuration.Observe(decode.Seconds())
}

// FrameDisplayed records a frame published to the visible slot.
func (m *Metrics) FrameDisplayed() {
	if m == nil {
		return
	}
	m.framesDisplayed.Inc()
}

// FrameDropped records a received frame that was never displayed.
func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

// Directions for InputEvent.
const (
	DirectionRecorded = "recorded"
	DirectionPlayed   = "played"
)

// InputEvent records one input event crossing the recording handler.
func (m *Metrics) InputEvent(event, direction string) {
	if m == nil {
		return
	}
	m.inputEvents.WithLabelValues(event, direction).Inc()
}

// TaskRejected records a background task the pool could not accept.
func (m *Metrics) TaskRejected() {
	if m == nil {
		return
	}
	m.tasksRejected.Inc()
}
