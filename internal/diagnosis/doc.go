// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diagnosis runs the leaf analysis pipeline.
//
// Predict decodes the upload, rejects images that are not plant material,
// runs the primary and secondary adapters concurrently under a deadline,
// fuses their answers, grades severity and attaches advice from the
// knowledge base.
//
// Predict never returns an error and never panics. Failures become an
// Error-kind Result (disease "Error", isIrrelevant true, empty advice lists)
// carrying a reason suitable for display.
//
// # Key Types
//
//   - Engine: the configured pipeline
//   - Result: the diagnosis returned to clients
//
// # Usage
//
//	engine, err := diagnosis.New(primary, secondary, kbStore,
//	    diagnosis.WithWeights(ensemble.DefaultWeights()),
//	    diagnosis.WithTimeout(30*time.Second),
//	)
//	result := engine.Predict(ctx, imageBytes, "tomato", nil)
package diagnosis
