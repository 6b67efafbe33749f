// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/remotesession/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "remotesession: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "host":
		return hostCmd(rest)
	case "client":
		return clientCmd(rest)
	case "loopback":
		return loopbackCmd(rest)
	case "replay":
		return replayCmd(rest)
	case "version", "--version", "-v":
		return version.Print(os.Stdout, "remotesession")
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand %q", command)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `remotesession streams frames from a host to a client and input back.

Usage:
  remotesession host [flags]               serve frames and replay received input
  remotesession client [flags] [ADDRESS]   connect to a host and view it
  remotesession loopback [flags]           run a host and client in one process
  remotesession replay [flags] FILE ADDRESS
                                           send a recorded input session to a host
  remotesession version                    print version information

Run "remotesession <subcommand> --help" for subcommand flags.

Environment:
  REMOTESESSION_CONFIG   configuration file (YAML, or JSON/JSONC by extension)
  REMOTESESSION_DEBUG    enable debug logging
`)
}
