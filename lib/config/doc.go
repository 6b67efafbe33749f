// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads remotesession configuration.
//
// Configuration comes from a single file named by the --config flag
// or the REMOTESESSION_CONFIG environment variable (see [Resolve]).
// Without either, [Default] applies. The file is YAML; a file ending
// in .json or .jsonc is accepted too, with comments and trailing commas
// stripped before decoding. Unknown keys are rejected so a misspelled
// setting fails loudly instead of silently keeping its default.
//
// Path fields (the capture directory and the log file) expand ${HOME},
// ${VAR}, and ${VAR:-default} after loading. No other environment
// variable overrides a configured value.
//
// Key exports:
//
//   - [Config] -- host, client, framebuffer, metrics, workers, logging
//   - [Default] -- the configuration used when no file is given
//   - [Load], [LoadFile], [Resolve] -- entry points for loading
//   - [Config.Validate] -- reports every problem at once
//
// This package depends on no other remotesession packages.
package config
