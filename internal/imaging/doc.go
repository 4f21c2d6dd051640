// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package imaging turns uploaded bytes into RGB pixel buffers and decides
// whether a buffer plausibly shows plant material.
//
// # Key Types
//
//   - Buffer: RGB pixels, three bytes per pixel, row-major
//   - Gate: green-dominance heuristic run before any classifier
//   - DecodeError, ValidationError: typed failures matched with errors.Is
//
// # Supported Formats
//
// JPEG, PNG and GIF from the standard library; WebP, BMP and TIFF from
// golang.org/x/image. Every source colour model is normalized to RGB and alpha
// is discarded.
//
// # Usage
//
//	raw, err := imaging.DecodeBase64(imaging.StripDataURI(body.Image).Data)
//	buf, err := imaging.Decode(raw)
//	if !imaging.NewGate(imaging.DefaultGateParams(), logger).Admit(buf) {
//	    // not a leaf
//	}
package imaging
