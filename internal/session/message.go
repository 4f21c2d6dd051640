// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"time"

	"github.com/jeranaias/planthealth/internal/util"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	TokenCount int       `json:"tokenCount,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
}

// NewMessage stamps a message with the current time and a token estimate.
func NewMessage(role, content string) Message {
	return Message{
		Role:       role,
		Content:    content,
		TokenCount: util.EstimateTokens(content),
		Timestamp:  time.Now().UTC(),
	}
}

// LastUser returns the most recent message with role "user", scanning from
// the end.
func LastUser(history []Message) (Message, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return history[i], true
		}
	}
	return Message{}, false
}
