// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the plant health HTTP API.
//
// # Endpoints
//
//   - GET  /api/health        - Liveness and model status
//   - GET  /api/crops         - Supported crops and their disease labels
//   - POST /api/analyze-crop  - Diagnose a base64 leaf image
//   - POST /api/chat          - Advisory chat reply
//
// Every error body is {"error": "..."}. Unknown paths return 404 and known
// paths with the wrong method return 405.
//
// # Middleware
//
// Requests pass through, in order: panic recovery, request id
// (X-Request-Id), security headers, request logging, a token bucket per
// client IP and CORS. Preflight OPTIONS requests are answered with 204.
//
// Analyses are CPU bound, so at most server.max_concurrent_analyses run at
// once. A request that cannot get a slot within the queue timeout gets 503.
//
// # Key Types
//
//   - Server: HTTP server with router and middleware
//   - Analyzer, Responder: the diagnosis and chat collaborators
//
// # Usage
//
//	srv := server.New(cfg.Server, engine, assistant).
//		WithLogger(logging.For("server")).
//		WithVersion(version)
//	if err := srv.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package server
