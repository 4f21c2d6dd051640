// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the planthealth command-line interface.
//
// Commands are built with cobra and share one set of global flags for the
// config file and logging. Human output is styled with lipgloss and falls
// back to plain text when stdout is not a terminal or NO_COLOR is set.
//
// # Key Types
//
//   - App: holds global flags and output streams for one invocation
//   - JSONResponse: the envelope printed by commands run with --json
//   - CommandError: a failure carrying the command, action and exit code
//
// # Usage
//
//	os.Exit(cli.Execute(os.Args[1:]))
//
// # Commands Overview
//
//   - serve: run the HTTP API
//   - diagnose: analyze one leaf image from disk
//   - chat: ask the advisory assistant a question
//   - crops: list supported crops and their diseases
//   - config init|show: write or print the configuration
//   - version: print build information
package cli
