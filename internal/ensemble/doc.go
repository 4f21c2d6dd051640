// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ensemble fuses two classifier predictions into one.
//
// When both adapters agree, confidences are blended by trust weight and
// rounded to one decimal. When they disagree, the strictly more confident
// prediction wins; on an exact tie the adapter with the larger weight wins,
// and with equal weights the primary adapter wins.
//
// # Usage
//
//	fused := ensemble.Fuse(primary, secondary, ensemble.DefaultWeights())
package ensemble
