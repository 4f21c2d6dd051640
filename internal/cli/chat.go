// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/planthealth/internal/chat"
	"github.com/jeranaias/planthealth/internal/session"
)

// ChatOutput is the JSON data of the chat command.
type ChatOutput struct {
	Response  string            `json:"response"`
	Language  string            `json:"language"`
	SessionID string            `json:"sessionId,omitempty"`
	History   []session.Message `json:"history,omitempty"`
}

func (app *App) newChatCommand() *cobra.Command {
	var (
		lang        string
		sessionID   string
		userID      string
		showHistory bool
	)

	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask the farming assistant a question",
		Long: `Ask the farming assistant a question. With no question the welcome
message for --lang is printed. With --session the turn is recorded in the
configured session store; --history prints that session's transcript.`,
		Example: `  planthealth chat "how do I treat leaf blight?"
  planthealth chat --lang hi
  planthealth chat --session field-7 --history`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showHistory && sessionID == "" {
				return &ValidationError{Field: "session", Reason: "--history requires --session"}
			}

			cfg, err := app.Config()
			if err != nil {
				return err
			}
			store, err := openSessions(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			assistant := buildAssistant(store)

			out := ChatOutput{Language: chat.ResolveLanguage(lang).String(), SessionID: sessionID}

			if showHistory {
				history, err := assistant.History(cmd.Context(), sessionID)
				if err != nil {
					return NewCommandError("chat", "load history", sessionID, err)
				}
				out.History = history
				return app.print("chat", out, func(w io.Writer) { renderHistory(w, history) })
			}

			question := strings.TrimSpace(strings.Join(args, " "))
			var messages []session.Message
			if question != "" {
				messages = []session.Message{session.NewMessage(session.RoleUser, question)}
			}
			out.Response = assistant.Respond(cmd.Context(), messages, lang, sessionID, userID)

			return app.print("chat", out, func(w io.Writer) {
				fmt.Fprintln(w, WrapText(out.Response, GetTerminalWidth()))
			})
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "en", "reply language: "+strings.Join(chat.Languages(), ", "))
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to record the turn under")
	cmd.Flags().StringVar(&userID, "user", "", "user id for logging")
	cmd.Flags().BoolVar(&showHistory, "history", false, "print the session transcript and exit")
	return cmd
}

func renderHistory(w io.Writer, history []session.Message) {
	if len(history) == 0 {
		fmt.Fprintln(w, RenderConditional(DimStyle, "No messages recorded."))
		return
	}
	for _, m := range history {
		role := RenderConditional(SectionStyle.UnsetMarginTop(), m.Role)
		fmt.Fprintf(w, "%s: %s\n", role, m.Content)
	}
}
