// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat produces advisory replies for the plant health assistant.
//
// Respond routes the latest user message to an intent, answers with that
// intent's advisory paragraph and records the exchange in the session store.
// A conversation without a user message gets a welcome in the requested
// language.
//
// Welcome texts exist in English, Hindi, Telugu and Tamil. Language codes
// are matched with BCP 47 rules, so "hi-IN" selects Hindi; unsupported or
// malformed codes select English. Advisory paragraphs are English only.
//
// Respond never fails outward. Session store errors are logged and do not
// change the reply.
//
// # Usage
//
//	a := chat.New(store, router.New(), logger)
//	reply := a.Respond(ctx, messages, "te", sessionID, userID)
package chat
