// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels rejects images whose declared dimensions would exhaust memory
// before decoding starts (roughly 8000x8000).
const MaxPixels = 64_000_000

// Buffer is a decoded RGB image.
type Buffer struct {
	Pix    []uint8
	Width  int
	Height int
	// Format is the name the decoder registered, e.g. "jpeg" or "webp".
	Format string
}

// NewBuffer allocates a zeroed RGB buffer.
func NewBuffer(width, height int) *Buffer {
	return &Buffer{
		Pix:    make([]uint8, width*height*3),
		Width:  width,
		Height: height,
	}
}

// Len returns the number of pixels.
func (b *Buffer) Len() int { return b.Width * b.Height }

// At returns the RGB channels of pixel i in row-major order.
func (b *Buffer) At(i int) (r, g, bl uint8) {
	o := i * 3
	return b.Pix[o], b.Pix[o+1], b.Pix[o+2]
}

// Set writes pixel i.
func (b *Buffer) Set(i int, r, g, bl uint8) {
	o := i * 3
	b.Pix[o], b.Pix[o+1], b.Pix[o+2] = r, g, bl
}

// Decode parses data as any registered image format and converts it to RGB.
// Every failure, including a panicking decoder, is returned as *DecodeError.
func Decode(data []byte) (buf *Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = &DecodeError{Reason: fmt.Sprintf("decoder panic: %v", r)}
		}
	}()

	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty input"}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "unrecognized format", Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Reason: "zero-sized image"}
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, &DecodeError{Reason: fmt.Sprintf("image too large (%dx%d)", cfg.Width, cfg.Height)}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "corrupt image data", Err: err}
	}

	buf = FromImage(img)
	buf.Format = format
	return buf, nil
}

// FromImage copies any image.Image into an RGB buffer.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	}

	buf := NewBuffer(bounds.Dx(), bounds.Dy())
	for y := 0; y < buf.Height; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+buf.Width*4]
		for x := 0; x < buf.Width; x++ {
			buf.Set(y*buf.Width+x, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return buf
}

// Image returns an opaque NRGBA view of the buffer.
func (b *Buffer) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for i, n := 0, b.Len(); i < n; i++ {
		r, g, bl := b.At(i)
		o := i * 4
		img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = r, g, bl, 0xff
	}
	return img
}

// Resize returns a bilinear-resampled copy at width x height.
func (b *Buffer) Resize(width, height int) *Buffer {
	if width == b.Width && height == b.Height {
		out := &Buffer{Pix: append([]uint8(nil), b.Pix...), Width: b.Width, Height: b.Height, Format: b.Format}
		return out
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), b.Image(), image.Rect(0, 0, b.Width, b.Height), draw.Src, nil)
	out := FromImage(dst)
	out.Format = b.Format
	return out
}

// EncodePNG re-encodes the buffer losslessly.
func (b *Buffer) EncodePNG() ([]byte, error) {
	var out bytes.Buffer
	if err := png.Encode(&out, b.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}
