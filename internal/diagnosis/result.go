// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package diagnosis

import "github.com/jeranaias/planthealth/internal/inference"

// Severity tiers.
const (
	SeverityNA     = "N/A"
	SeverityLow    = "Low"
	SeverityMedium = "Medium"
	SeverityHigh   = "High"
)

// Sentinel disease names for non-diagnoses.
const (
	DiseaseIrrelevant = "IRRELEVANT_IMAGE"
	DiseaseError      = "Error"
)

// Reasons attached to non-diagnoses.
const (
	ReasonIrrelevant   = "Please upload a clear image of a plant leaf."
	ReasonDecode       = "Failed to process image"
	ReasonModelFailure = "Analysis model unavailable"
	ReasonInternal     = "Analysis failed"
)

// Result is a complete diagnosis.
type Result struct {
	Disease          string   `json:"disease"`
	Confidence       float64  `json:"confidence"`
	Severity         string   `json:"severity"`
	IsIrrelevant     bool     `json:"isIrrelevant"`
	IrrelevantReason string   `json:"irrelevantReason,omitempty"`
	Symptoms         []string `json:"symptoms"`
	Treatment        []string `json:"treatment"`
	Prevention       []string `json:"prevention"`
}

// IsError reports whether r is an Error-kind result.
func (r Result) IsError() bool { return r.Disease == DiseaseError }

// Severity grades a prediction. Boundaries fall to the lower tier.
func Severity(label string, confidence float64) string {
	switch {
	case label == inference.HealthyLabel:
		return SeverityNA
	case confidence > 90:
		return SeverityHigh
	case confidence > 75:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Irrelevant is the result for images rejected by the plant gate.
func Irrelevant() Result {
	return Result{
		Disease:          DiseaseIrrelevant,
		Confidence:       0,
		Severity:         SeverityNA,
		IsIrrelevant:     true,
		IrrelevantReason: ReasonIrrelevant,
		Symptoms:         []string{},
		Treatment:        []string{},
		Prevention:       []string{},
	}
}

// ErrorResult is the result for any failure inside the pipeline.
func ErrorResult(reason string) Result {
	return Result{
		Disease:          DiseaseError,
		Confidence:       0,
		Severity:         SeverityNA,
		IsIrrelevant:     true,
		IrrelevantReason: reason,
		Symptoms:         []string{},
		Treatment:        []string{},
		Prevention:       []string{},
	}
}
