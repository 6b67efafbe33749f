// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the reliable byte streams a remote session
// runs over.
//
// The package defines two interfaces: [Listener] accepts inbound
// streams on the host (Accept, Address, Close), and [Dialer] opens an
// outbound stream from the client (DialContext). Both produce a plain
// net.Conn, so the session layer never knows which transport it is
// using.
//
// [TCPListener] and [TCPDialer] are the default transport: one TCP
// connection per session. The dialer requests a large socket receive
// buffer because a single framebuffer update can be several megabytes.
//
// [WebSocketListener] and [WebSocketDialer] carry the same stream inside
// binary websocket messages, for hosts reachable only through an HTTP
// proxy or load balancer. [WebSocketConn] adapts a gorilla websocket
// connection to net.Conn; each Write becomes one binary message.
//
// [NormalizeAddress] fills in the default session port for addresses
// given as a bare host name.
package transport
