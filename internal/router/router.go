// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"sort"

	"github.com/jeranaias/planthealth/internal/session"
)

// MaxQueryLength caps how many bytes of a message are classified.
const MaxQueryLength = 100000

var defaultRouter = New()

type compiledRule struct {
	priority int
	intent   Intent
	keywords []string
}

// Router is a compiled, immutable rule table. It is safe for concurrent use.
type Router struct {
	rules []compiledRule
}

// New compiles rules, or DefaultRules when none are given. Rules are sorted
// by priority once; equal priorities keep their given order. Keywords are
// folded and empty keywords dropped.
func New(rules ...Rule) *Router {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		c := compiledRule{priority: r.Priority, intent: r.Intent}
		for _, kw := range r.Keywords {
			if f := Fold(kw); f != "" {
				c.keywords = append(c.keywords, f)
			}
		}
		compiled = append(compiled, c)
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].priority < compiled[j].priority
	})
	return &Router{rules: compiled}
}

// Route classifies the latest user message in history. With no user message
// the decision is IntentWelcome.
func (r *Router) Route(history []session.Message) Decision {
	msg, ok := session.LastUser(history)
	if !ok {
		return Decision{Intent: IntentWelcome, Reason: "no user message"}
	}
	return r.Classify(msg.Content)
}

// Classify routes a single query.
func (r *Router) Classify(query string) Decision {
	text := query
	if len(text) > MaxQueryLength {
		text = text[:MaxQueryLength]
	}
	folded := Fold(text)

	for _, rule := range r.rules {
		if kw, ok := rule.match(folded); ok {
			return Decision{
				Intent:  rule.intent,
				Keyword: kw,
				Query:   query,
				Reason:  fmt.Sprintf("matched %q (priority %d)", kw, rule.priority),
			}
		}
	}
	return Decision{Intent: IntentGeneral, Query: query, Reason: "no keyword matched"}
}
