// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/jeranaias/planthealth/internal/chat"
	"github.com/jeranaias/planthealth/internal/config"
	"github.com/jeranaias/planthealth/internal/diagnosis"
	"github.com/jeranaias/planthealth/internal/ensemble"
	"github.com/jeranaias/planthealth/internal/imaging"
	"github.com/jeranaias/planthealth/internal/inference"
	"github.com/jeranaias/planthealth/internal/knowledge"
	"github.com/jeranaias/planthealth/internal/logging"
	"github.com/jeranaias/planthealth/internal/router"
	"github.com/jeranaias/planthealth/internal/session"
)

// openKnowledge loads the override file when configured, otherwise the
// embedded knowledge base.
func openKnowledge(cfg *config.Config) (*knowledge.Store, error) {
	kb, err := knowledge.Open(cfg.Knowledge.OverridePath, logging.For("knowledge"))
	if err != nil {
		return nil, &CommandError{Command: "knowledge", Action: "load", Reason: "could not load knowledge base", Err: err, Code: ExitConfigError}
	}
	return kb, nil
}

// buildEngine constructs both adapters and the diagnosis engine. An adapter
// that fails to initialize is logged and left nil; analyses then report the
// model as unavailable while the rest of the service keeps working.
func buildEngine(cfg *config.Config, kb diagnosis.KnowledgeSource) (*diagnosis.Engine, error) {
	logger := logging.For("diagnosis")
	opts := inference.Options{
		Remote: inference.RemoteOptions{
			BaseURL:   cfg.Inference.Remote.BaseURL,
			APIKey:    cfg.Inference.Remote.APIKey,
			Model:     cfg.Inference.Remote.Model,
			MaxTokens: cfg.Inference.Remote.MaxTokens,
		},
		Logger: logging.For("inference"),
	}

	primary, primaryErr := inference.New(cfg.Inference.Primary, opts)
	if primaryErr != nil {
		logger.Error("ADAPTER_INIT_FAILED", "role", "primary", "kind", cfg.Inference.Primary, "error", primaryErr)
	}
	secondary, secondaryErr := inference.New(cfg.Inference.Secondary, opts)
	if secondaryErr != nil {
		logger.Error("ADAPTER_INIT_FAILED", "role", "secondary", "kind", cfg.Inference.Secondary, "error", secondaryErr)
	}

	gate := imaging.NewGate(imaging.GateParams{
		SampleSize:     cfg.Gate.SampleSize,
		GreenThreshold: cfg.Gate.GreenThreshold,
		MinPixels:      cfg.Gate.MinPixels,
	}, logging.For("gate"))

	engine, err := diagnosis.New(primary, secondary, kb,
		diagnosis.WithWeights(ensemble.Weights{
			Primary:   cfg.Inference.PrimaryWeight,
			Secondary: cfg.Inference.SecondaryWeight,
		}),
		diagnosis.WithGate(gate),
		diagnosis.WithTimeout(cfg.Inference.Timeout()),
		diagnosis.WithLogger(logger),
		diagnosis.WithInitErrors(primaryErr, secondaryErr),
	)
	if err != nil {
		return nil, &CommandError{Command: "diagnosis", Action: "initialize", Reason: "invalid engine settings", Err: err, Code: ExitConfigError}
	}
	return engine, nil
}

// openSessions creates the configured session store.
func openSessions(cfg *config.Config) (session.Store, error) {
	store, err := session.NewStore(session.StoreType(cfg.Session.Driver),
		session.WithRedisAddr(cfg.Session.RedisAddr, cfg.Session.RedisPassword, cfg.Session.RedisDB),
		session.WithKeyPrefix(cfg.Session.KeyPrefix),
		session.WithTTL(cfg.Session.TTL()),
	)
	if err != nil {
		return nil, &CommandError{Command: "session", Action: "open store", Reason: "invalid session settings", Err: err, Code: ExitConfigError}
	}
	return store, nil
}

// buildAssistant wires the default router to store.
func buildAssistant(store session.Store) *chat.Assistant {
	return chat.New(store, router.New(), logging.For("chat"))
}
