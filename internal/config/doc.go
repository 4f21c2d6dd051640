// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config handles planthealth configuration loading and validation.
//
// Configuration is read from ~/.planthealth/config.toml, falling back to
// config.json in the same directory, then to built-in defaults. A .env file in
// the working directory is loaded first so PLANTHEALTH_* variables can live
// next to a deployment.
//
// # Key Types
//
//   - Config: root configuration (server, gate, inference, knowledge, session, logging)
//   - ValidationError / ValidateErrors: field-level validation failures
//
// # Environment Variables
//
//   - PLANTHEALTH_ENV: development, production or testing profile
//   - PLANTHEALTH_HOST, PLANTHEALTH_PORT (PORT is honoured as well)
//   - PLANTHEALTH_ALLOWED_ORIGINS: comma-separated CORS origins
//   - PLANTHEALTH_PRIMARY_MODEL, PLANTHEALTH_SECONDARY_MODEL
//   - PLANTHEALTH_REMOTE_BASE_URL, PLANTHEALTH_REMOTE_MODEL
//   - PLANTHEALTH_REMOTE_API_KEY (LOVABLE_API_KEY is accepted as a fallback)
//   - PLANTHEALTH_SESSION_DRIVER, PLANTHEALTH_REDIS_ADDR
//   - PLANTHEALTH_KB_PATH
//   - PLANTHEALTH_LOG_LEVEL (LOG_LEVEL is honoured as well)
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	addr := cfg.Server.Addr()
package config
