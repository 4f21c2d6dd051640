// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across planthealth packages.
//
// # Key Functions
//
//   - TruncateRunes: UTF-8 safe truncation for log previews
//   - EstimateTokens: rough token count for chat messages
//   - AtomicWriteFile: crash-safe file writing, used when saving config
//
// # Usage
//
//	preview := util.TruncateRunes(message, 80)
//	tokens := util.EstimateTokens(message)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
