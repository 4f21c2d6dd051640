// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"runtime/debug"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/planthealth/internal/router"
	"github.com/jeranaias/planthealth/internal/session"
	"github.com/jeranaias/planthealth/internal/util"
)

// Assistant answers chat turns. It is safe for concurrent use.
type Assistant struct {
	store  session.Store
	router *router.Router
	logger *log.Logger
}

// New builds an assistant. A nil store disables session memory; a nil
// router uses the default rule table.
func New(store session.Store, r *router.Router, logger *log.Logger) *Assistant {
	if r == nil {
		r = router.New()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Assistant{store: store, router: r, logger: logger}
}

// Loaded reports whether the assistant can answer.
func (a *Assistant) Loaded() bool { return a != nil && a.router != nil }

// Respond returns the reply to the latest user message in messages.
// When sessionID is set the user message and the reply are appended to
// that session as one batch.
func (a *Assistant) Respond(ctx context.Context, messages []session.Message, lang, sessionID, userID string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("CHAT_PANIC", "panic", r, "stack", string(debug.Stack()))
			reply = Reply(router.IntentGeneral)
		}
	}()

	decision := a.router.Route(messages)
	if decision.Intent == router.IntentWelcome {
		a.logger.Debug("CHAT_WELCOME", "language", lang, "session", sessionID)
		return Welcome(lang)
	}

	reply = Reply(decision.Intent)
	a.record(ctx, sessionID, decision.Query, reply)

	a.logger.Info("CHAT_RESPONSE",
		"intent", decision.Intent,
		"keyword", decision.Keyword,
		"language", lang,
		"session", sessionID,
		"user", userID,
		"query", util.TruncateRunes(decision.Query, 80),
	)
	return reply
}

// History returns the recorded turns of a session.
func (a *Assistant) History(ctx context.Context, sessionID string) ([]session.Message, error) {
	if a.store == nil {
		return []session.Message{}, nil
	}
	return a.store.History(ctx, sessionID)
}

func (a *Assistant) record(ctx context.Context, sessionID, query, reply string) {
	if a.store == nil || sessionID == "" {
		return
	}
	err := a.store.Append(ctx, sessionID,
		session.NewMessage(session.RoleUser, query),
		session.NewMessage(session.RoleAssistant, reply),
	)
	if err != nil {
		a.logger.Warn("SESSION_APPEND_FAILED", "session", sessionID, "error", err)
	}
}
