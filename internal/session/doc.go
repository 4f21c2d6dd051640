// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session stores per-conversation chat history.
//
// A session is an opaque id mapped to an ordered, append-only list of
// messages. Logs are created lazily on the first append. Appending with an
// empty id is a no-op, so session memory stays optional for callers.
//
// # Key Types
//
//   - Message: one conversation turn
//   - Store: the append/read contract shared by every driver
//
// # Drivers
//
//   - memory: in-process map, one mutex per session; lost on restart
//   - redis: one list per session, appended with RPUSH inside MULTI so a
//     multi-message append never interleaves with another writer
//
// # Usage
//
//	store, err := session.NewStore(session.StoreTypeMemory)
//	defer store.Close()
//
//	err = store.Append(ctx, "abc", session.NewMessage(session.RoleUser, "hi"))
//	history, err := store.History(ctx, "abc")
package session
