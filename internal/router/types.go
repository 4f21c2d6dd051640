// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import "fmt"

// ============================================================================
// INTENT TYPE
// ============================================================================

// Intent is the advisory category a conversation is routed to.
type Intent int

const (
	// IntentWelcome is chosen when there is no user message to classify.
	IntentWelcome Intent = iota
	// IntentDisease covers questions about diseases and their signs.
	IntentDisease
	// IntentTreatment covers cures and spray programs.
	IntentTreatment
	// IntentPrevention covers protective practices.
	IntentPrevention
	// IntentCrop covers crop-specific care.
	IntentCrop
	// IntentGeneral is the terminal default.
	IntentGeneral
)

// String returns the lower-case name used in logs.
func (i Intent) String() string {
	switch i {
	case IntentWelcome:
		return "welcome"
	case IntentDisease:
		return "disease"
	case IntentTreatment:
		return "treatment"
	case IntentPrevention:
		return "prevention"
	case IntentCrop:
		return "crop"
	case IntentGeneral:
		return "general"
	default:
		return fmt.Sprintf("Intent(%d)", int(i))
	}
}

// ParseIntent is the inverse of String.
func ParseIntent(name string) (Intent, error) {
	for i := IntentWelcome; i <= IntentGeneral; i++ {
		if i.String() == name {
			return i, nil
		}
	}
	return IntentGeneral, fmt.Errorf("unknown intent %q", name)
}

// ============================================================================
// RULES AND DECISIONS
// ============================================================================

// Rule maps a keyword set to an intent. Lower Priority is evaluated first.
// A rule with no keywords never matches.
type Rule struct {
	Priority int
	Intent   Intent
	Keywords []string
}

// Decision is the outcome of routing one conversation.
type Decision struct {
	// Intent is the chosen category.
	Intent Intent
	// Keyword is the folded keyword that matched, empty for Welcome and General.
	Keyword string
	// Query is the user message that was classified.
	Query string
	// Reason is a short human-readable explanation.
	Reason string
}
