// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ============================================================================
// CLASSIFICATION FUNCTIONS
// ============================================================================

// DefaultRules returns the advisory routing table.
//
// Classification rules (in order of priority):
//  1. Disease: disease, blight, rot, fungus, virus, infection
//  2. Treatment: treat, cure, medicine, spray, fungicide
//  3. Prevention: prevent, protect, avoid, stop
//  4. Crop: tomato, potato, rice, wheat, maize, cotton
//  5. General: default fallback
func DefaultRules() []Rule {
	return []Rule{
		{Priority: 1, Intent: IntentDisease, Keywords: []string{"disease", "blight", "rot", "fungus", "virus", "infection"}},
		{Priority: 2, Intent: IntentTreatment, Keywords: []string{"treat", "cure", "medicine", "spray", "fungicide"}},
		{Priority: 3, Intent: IntentPrevention, Keywords: []string{"prevent", "protect", "avoid", "stop"}},
		{Priority: 4, Intent: IntentCrop, Keywords: []string{"tomato", "potato", "rice", "wheat", "maize", "cotton"}},
	}
}

// Fold normalizes text for keyword matching: NFKC then Unicode case folding.
func Fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// ClassifyIntent routes a single query with the default rules.
func ClassifyIntent(query string) Intent {
	return defaultRouter.Classify(query).Intent
}

// match returns the first keyword of rule found in folded, if any.
func (r compiledRule) match(folded string) (string, bool) {
	for _, kw := range r.keywords {
		if strings.Contains(folded, kw) {
			return kw, true
		}
	}
	return "", false
}
