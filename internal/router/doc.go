// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router classifies chat messages into advisory intents.
//
// Classification runs an ordered rule table against the latest user message
// in a conversation. Rules are evaluated by ascending priority and the first
// rule with any keyword present wins. A conversation with no user message
// routes to the welcome intent.
//
// # Key Types
//
//   - Intent: advisory category (Welcome, Disease, Treatment, Prevention,
//     Crop, General)
//   - Rule: one row of the routing table
//   - Router: a compiled rule table
//   - Decision: intent plus the keyword and query that produced it
//
// # Matching
//
// Keywords match as substrings after Unicode case folding and NFKC
// normalization, so "BLIGHT", "Blight" and full-width "ｂｌｉｇｈｔ" all hit
// the disease rule. A message matching several rules takes the one with the
// lowest priority number.
//
// # Usage
//
//	r := router.New()
//	decision := r.Route(history)
//	switch decision.Intent {
//	case router.IntentWelcome:
//	    // greet
//	case router.IntentDisease:
//	    // disease guidance
//	}
package router
