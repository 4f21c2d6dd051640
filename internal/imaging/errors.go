// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package imaging

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode matches every DecodeError.
	ErrDecode = errors.New("image decode failed")

	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("invalid image input")
)

// DecodeError reports bytes that could not be parsed as a supported image.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
	}
	return "decode image: " + e.Reason
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

// ValidationError reports malformed input caught before decoding. Message is
// safe to return to API clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }
