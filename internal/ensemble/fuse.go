// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ensemble

import (
	"fmt"
	"math"

	"github.com/jeranaias/planthealth/internal/inference"
)

// Source records how a fused prediction was reached.
type Source string

const (
	SourceAgreement Source = "agreement"
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	// SourceTieBreak marks equal-confidence disagreement settled by weight.
	SourceTieBreak Source = "tie-break"
)

// Weights are the trust weights of the primary and secondary adapters.
type Weights struct {
	Primary   float64
	Secondary float64
}

// DefaultWeights returns 0.6 / 0.4.
func DefaultWeights() Weights {
	return Weights{Primary: 0.6, Secondary: 0.4}
}

// Validate requires each weight in [0, 1] and a sum of 1.
func (w Weights) Validate() error {
	if w.Primary < 0 || w.Primary > 1 || w.Secondary < 0 || w.Secondary > 1 {
		return fmt.Errorf("weights must be within [0, 1], got %g/%g", w.Primary, w.Secondary)
	}
	if math.Abs(w.Primary+w.Secondary-1) > 1e-9 {
		return fmt.Errorf("weights must sum to 1, got %g", w.Primary+w.Secondary)
	}
	return nil
}

// Prediction is the fused result.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
}

// Fuse combines a primary and secondary prediction. The fused label is always
// one of the two input labels.
func Fuse(primary, secondary inference.Prediction, w Weights) Prediction {
	if primary.Label == secondary.Label {
		blended := w.Primary*primary.Confidence + w.Secondary*secondary.Confidence
		return Prediction{
			Label:      primary.Label,
			Confidence: inference.ClampConfidence(Round1(blended)),
			Source:     SourceAgreement,
		}
	}

	switch {
	case primary.Confidence > secondary.Confidence:
		return from(primary, SourcePrimary)
	case secondary.Confidence > primary.Confidence:
		return from(secondary, SourceSecondary)
	case w.Secondary > w.Primary:
		return from(secondary, SourceTieBreak)
	default:
		return from(primary, SourceTieBreak)
	}
}

func from(p inference.Prediction, src Source) Prediction {
	return Prediction{Label: p.Label, Confidence: inference.ClampConfidence(p.Confidence), Source: src}
}

// Round1 rounds to one decimal place, halves away from zero. The nudge
// absorbs binary representation error at .x5 boundaries.
func Round1(v float64) float64 {
	scaled := v * 10
	return math.Round(scaled+math.Copysign(1e-9, scaled)) / 10
}
