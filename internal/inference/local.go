// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inference

import (
	"context"
	"fmt"

	"github.com/jeranaias/planthealth/internal/imaging"
)

// Input sizes the local adapters resample to.
const (
	EfficientNetInputSize = 380
	ViTInputSize          = 224
	ViTPatchSize          = 16
)

// rowsPerCheck is how many rows are scanned between context checks.
const rowsPerCheck = 32

// ============================================================================
// EFFICIENTNET
// ============================================================================

// EfficientNet scores labels from whole-image symptom shares.
type EfficientNet struct{}

// NewEfficientNet returns the global-statistics adapter.
func NewEfficientNet() *EfficientNet { return &EfficientNet{} }

// Name implements Adapter.
func (*EfficientNet) Name() string { return "efficientnet_b4" }

// Predict implements Adapter.
func (e *EfficientNet) Predict(ctx context.Context, img *imaging.Buffer, labels []string) (Prediction, error) {
	if err := checkInput(img); err != nil {
		return Prediction{}, &AdapterError{Adapter: e.Name(), Err: err}
	}
	if len(labels) == 0 {
		return Prediction{Label: UnknownLabel}, nil
	}

	feat, err := GlobalFeatures(ctx, img.Resize(EfficientNetInputSize, EfficientNetInputSize))
	if err != nil {
		return Prediction{}, &AdapterError{Adapter: e.Name(), Err: err}
	}
	return pick(labels, feat), nil
}

// GlobalFeatures computes per-pixel symptom shares over the whole buffer.
func GlobalFeatures(ctx context.Context, img *imaging.Buffer) (Features, error) {
	var counts [symptomCount]int
	leaf := 0
	for y := 0; y < img.Height; y++ {
		if y%rowsPerCheck == 0 {
			if err := ctx.Err(); err != nil {
				return Features{}, err
			}
		}
		for x := 0; x < img.Width; x++ {
			if s := classifyPixel(img.At(y*img.Width + x)); s != SymptomNone {
				counts[s]++
				leaf++
			}
		}
	}
	return normalize(counts, leaf), nil
}

// ============================================================================
// VIT
// ============================================================================

// ViT scores labels from patch-level symptom votes. Each 16x16 patch casts
// one vote for its dominant symptom, so small scattered lesions weigh less
// than in EfficientNet while compact lesion clusters weigh more.
type ViT struct{}

// NewViT returns the patch-voting adapter.
func NewViT() *ViT { return &ViT{} }

// Name implements Adapter.
func (*ViT) Name() string { return "vit_b16" }

// Predict implements Adapter.
func (v *ViT) Predict(ctx context.Context, img *imaging.Buffer, labels []string) (Prediction, error) {
	if err := checkInput(img); err != nil {
		return Prediction{}, &AdapterError{Adapter: v.Name(), Err: err}
	}
	if len(labels) == 0 {
		return Prediction{Label: UnknownLabel}, nil
	}

	feat, err := PatchFeatures(ctx, img.Resize(ViTInputSize, ViTInputSize), ViTPatchSize)
	if err != nil {
		return Prediction{}, &AdapterError{Adapter: v.Name(), Err: err}
	}
	return pick(labels, feat), nil
}

// PatchFeatures splits img into size x size patches and returns the share of
// patches won by each symptom. Patches without leaf pixels abstain.
func PatchFeatures(ctx context.Context, img *imaging.Buffer, size int) (Features, error) {
	var votes [symptomCount]int
	voters := 0
	for py := 0; py+size <= img.Height; py += size {
		if err := ctx.Err(); err != nil {
			return Features{}, err
		}
		for px := 0; px+size <= img.Width; px += size {
			var counts [symptomCount]int
			for y := py; y < py+size; y++ {
				for x := px; x < px+size; x++ {
					if s := classifyPixel(img.At(y*img.Width + x)); s != SymptomNone {
						counts[s]++
					}
				}
			}
			winner, best := SymptomNone, 0
			for s, n := range counts {
				if n > best {
					winner, best = Symptom(s), n
				}
			}
			if winner != SymptomNone {
				votes[winner]++
				voters++
			}
		}
	}
	return normalize(votes, voters), nil
}

// ============================================================================
// HELPERS
// ============================================================================

func normalize(counts [symptomCount]int, total int) Features {
	var f Features
	if total == 0 {
		return f
	}
	for i, n := range counts {
		f[i] = float64(n) / float64(total)
	}
	return f
}

func checkInput(img *imaging.Buffer) error {
	if img == nil {
		return fmt.Errorf("nil image")
	}
	if img.Width <= 0 || img.Height <= 0 || len(img.Pix) < img.Len()*3 {
		return fmt.Errorf("malformed %dx%d buffer", img.Width, img.Height)
	}
	return nil
}
