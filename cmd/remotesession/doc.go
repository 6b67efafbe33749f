// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Remotesession hosts, views, and exercises remote sessions: a host
// streams captured frames to one client, and the client sends its
// input back for the host to replay.
//
// Usage:
//
//	remotesession host [flags]
//	remotesession client [flags] [ADDRESS]
//	remotesession loopback [flags]
//	remotesession replay [flags] FILE ADDRESS
//	remotesession version
//
// Every subcommand accepts --config (or REMOTESESSION_CONFIG) naming a
// YAML or JSONC file; flags override the file. The role is ticked at
// 60 Hz until SIGINT or SIGTERM.
//
// Environment variables:
//
//	REMOTESESSION_CONFIG  configuration file path
//	REMOTESESSION_DEBUG   enable debug logging
package main
