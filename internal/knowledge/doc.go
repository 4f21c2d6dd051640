// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package knowledge holds crop profiles and disease advice.
//
// The knowledge base is a YAML document embedded in the binary
// (data/knowledge.yaml). Operators may replace it with their own file and,
// optionally, have it reloaded whenever the file changes.
//
// # Key Types
//
//   - Base: an immutable, parsed knowledge base
//   - Entry: symptoms, treatment and prevention for one disease
//   - Crop: display names and the ordered list of valid disease labels
//   - Store: holds the current Base and swaps it on reload
//
// # Lookup Order
//
// Each of the three advice lists resolves independently:
//
//  1. "Healthy" always returns the fixed healthy entry
//  2. the crop-specific entry for (crop, label)
//  3. the generic entry for label
//  4. the generic fallback entry
//
// A list that is empty at one level falls through to the next, so every
// lookup returns a non-empty list.
//
// # Usage
//
//	kb, err := knowledge.Embedded()
//	labels, ok := kb.Profile("tomato")
//	advice := kb.Advise("tomato", "Late Blight")
package knowledge
