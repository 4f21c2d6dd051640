// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/planthealth/internal/imaging"
)

// UnknownLabel is returned when no candidate labels were supplied.
const UnknownLabel = "Unknown"

// HealthyLabel is the label every crop profile carries for disease-free leaves.
const HealthyLabel = "Healthy"

// Adapter kinds accepted by New.
const (
	KindEfficientNet = "efficientnet"
	KindViT          = "vit"
	KindRemote       = "remote"
)

// ErrAdapter matches every AdapterError.
var ErrAdapter = errors.New("inference adapter failed")

// Prediction is one adapter's answer.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Adapter classifies a leaf image against a closed label set.
type Adapter interface {
	// Name identifies the adapter in logs and health reports.
	Name() string
	Predict(ctx context.Context, img *imaging.Buffer, labels []string) (Prediction, error)
}

// AdapterError wraps any failure inside an adapter, including deadline expiry.
type AdapterError struct {
	Adapter string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %v", e.Adapter, e.Err)
}

func (e *AdapterError) Unwrap() []error { return []error{ErrAdapter, e.Err} }

// Options configures adapter construction.
type Options struct {
	Remote RemoteOptions
	Logger *log.Logger
}

// New constructs an adapter by kind.
func New(kind string, opts Options) (Adapter, error) {
	switch strings.ToLower(kind) {
	case KindEfficientNet:
		return NewEfficientNet(), nil
	case KindViT:
		return NewViT(), nil
	case KindRemote:
		r, err := NewRemote(opts.Remote, opts.Logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown inference adapter %q", kind)
	}
}

// ClampConfidence bounds c to [0, 100]; NaN becomes 0.
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}

// Status records whether an adapter initialized.
type Status struct {
	Name   string `json:"name"`
	Loaded bool   `json:"loaded"`
	Error  string `json:"error,omitempty"`
}

// ============================================================================
// LABEL SCORING
// ============================================================================

// scored pairs a label with its profile score.
type scored struct {
	label string
	score float64
	index int
}

// pick ranks labels by score and turns the winner's lead into a confidence.
// Equal scores keep list order so earlier labels win.
func pick(labels []string, feat Features) Prediction {
	if len(labels) == 0 {
		return Prediction{Label: UnknownLabel, Confidence: 0}
	}

	ranked := make([]scored, len(labels))
	for i, label := range labels {
		ranked[i] = scored{label: label, score: profileFor(label).score(feat), index: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	best := ranked[0]
	runnerUp := 0.0
	if len(ranked) > 1 {
		runnerUp = math.Max(ranked[1].score, 0)
	}
	strength := clamp01(best.score)
	separation := 1.0
	if best.score > 0 {
		separation = clamp01((best.score - runnerUp) / best.score)
	} else {
		separation = 0
	}

	conf := 50 + 49*(0.6*separation+0.4*strength)
	return Prediction{Label: best.label, Confidence: ClampConfidence(math.Round(conf*10) / 10)}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
