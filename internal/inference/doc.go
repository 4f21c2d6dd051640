// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package inference defines the leaf classifier contract and its adapters.
//
// Every adapter maps an RGB buffer and an ordered list of candidate disease
// labels to a single Prediction. The label is always drawn from the list, or
// is "Unknown" when the list is empty. Confidence is a percentage in [0, 100].
//
// # Adapters
//
//   - efficientnet: whole-image symptom colour statistics at 380x380
//   - vit: 16x16 patch voting over the same symptom vocabulary at 224x224
//   - remote: OpenAI-compatible vision chat completion
//
// The local adapters are deterministic: the same pixels and labels always
// produce the same prediction.
//
// # Usage
//
//	a, err := inference.New("efficientnet", inference.Options{})
//	pred, err := a.Predict(ctx, buf, []string{"Early Blight", "Late Blight", "Healthy"})
package inference
