// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the structured logger shared by every planthealth
// component.
//
// Events are logged as an upper-case event name followed by key/value pairs,
// for example:
//
//	logging.Default().Info("ANALYZE_COMPLETE", "crop", "tomato", "disease", "Early Blight")
//
// # Key Types
//
//   - Options: level, output format and optional log file
//
// # Usage
//
//	if err := logging.Configure(logging.Options{Level: "debug", Format: "json"}); err != nil {
//	    return err
//	}
//	logger := logging.For("server")
package logging
