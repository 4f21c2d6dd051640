// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package imaging

import (
	"encoding/base64"
	"strings"
)

// MinImageBytes is the smallest decoded payload accepted from clients.
const MinImageBytes = 100

// Payload is a client image field split into its parts.
type Payload struct {
	MIMEType string
	Data     string
}

// StripDataURI removes a "data:<mime>;base64," prefix if present. Payloads
// without a prefix are assumed to be JPEG.
func StripDataURI(s string) Payload {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return Payload{MIMEType: "image/jpeg", Data: s}
	}
	header, data, ok := strings.Cut(s, ",")
	if !ok {
		return Payload{MIMEType: "image/jpeg", Data: ""}
	}
	mime := strings.TrimPrefix(header, "data:")
	mime, _, _ = strings.Cut(mime, ";")
	if mime == "" {
		mime = "image/jpeg"
	}
	return Payload{MIMEType: mime, Data: data}
}

// DecodeBase64 decodes padded or unpadded standard base64, tolerating
// embedded whitespace and URL-safe alphabets. Results shorter than
// MinImageBytes are rejected.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, &ValidationError{Message: "Invalid image data"}
	}

	var (
		data []byte
		err  error
	)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err = enc.DecodeString(s); err == nil {
			break
		}
	}
	if err != nil {
		return nil, &ValidationError{Message: "Invalid base64 encoding"}
	}
	if len(data) < MinImageBytes {
		return nil, &ValidationError{Message: "Invalid image data"}
	}
	return data, nil
}

// EncodeDataURI formats raw bytes as a base64 data URI.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
