// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/planthealth/internal/ensemble"
	"github.com/jeranaias/planthealth/internal/imaging"
	"github.com/jeranaias/planthealth/internal/inference"
	"github.com/jeranaias/planthealth/internal/knowledge"
)

// DefaultTimeout bounds both adapters together.
const DefaultTimeout = 30 * time.Second

// KnowledgeSource yields the knowledge base to use for one request.
// *knowledge.Store satisfies it.
type KnowledgeSource interface {
	Current() *knowledge.Base
}

// Engine is the configured analysis pipeline. It is safe for concurrent use.
type Engine struct {
	primary   inference.Adapter
	secondary inference.Adapter
	weights   ensemble.Weights
	gate      *imaging.Gate
	kb        KnowledgeSource
	timeout   time.Duration
	logger    *log.Logger
	// initErrs holds why the primary and secondary adapters are missing.
	initErrs [2]error
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights sets the fusion trust weights.
func WithWeights(w ensemble.Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithGate replaces the default plant gate.
func WithGate(g *imaging.Gate) Option {
	return func(e *Engine) { e.gate = g }
}

// WithTimeout sets the inference deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithInitErrors records why the primary or secondary adapter failed to
// initialize so Adapters can report it.
func WithInitErrors(primary, secondary error) Option {
	return func(e *Engine) { e.initErrs = [2]error{primary, secondary} }
}

// New builds an engine. Either adapter may be nil when it failed to
// initialize; analyses then return an Error-kind result.
func New(primary, secondary inference.Adapter, kb KnowledgeSource, opts ...Option) (*Engine, error) {
	if kb == nil {
		return nil, errors.New("diagnosis: knowledge source is required")
	}
	e := &Engine{
		primary:   primary,
		secondary: secondary,
		weights:   ensemble.DefaultWeights(),
		kb:        kb,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	if e.gate == nil {
		e.gate = imaging.NewGate(imaging.DefaultGateParams(), e.logger)
	}
	if err := e.weights.Validate(); err != nil {
		return nil, fmt.Errorf("diagnosis: %w", err)
	}
	if e.timeout <= 0 {
		return nil, fmt.Errorf("diagnosis: timeout must be positive, got %s", e.timeout)
	}
	return e, nil
}

// Adapters reports initialization status for the primary then secondary
// adapter.
func (e *Engine) Adapters() []inference.Status {
	status := func(a inference.Adapter, initErr error) inference.Status {
		if a == nil {
			st := inference.Status{Loaded: false}
			if initErr != nil {
				st.Error = initErr.Error()
			}
			return st
		}
		return inference.Status{Name: a.Name(), Loaded: true}
	}
	return []inference.Status{
		status(e.primary, e.initErrs[0]),
		status(e.secondary, e.initErrs[1]),
	}
}

// Knowledge returns the knowledge base currently in use.
func (e *Engine) Knowledge() *knowledge.Base { return e.kb.Current() }

// Predict analyzes raw image bytes for cropType. When validDiseases is nil
// the crop's profile from the knowledge base is used; an unknown crop then
// yields an empty label list and an "Unknown" diagnosis.
func (e *Engine) Predict(ctx context.Context, image []byte, cropType string, validDiseases []string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("ANALYZE_PANIC", "crop", cropType, "panic", r, "stack", string(debug.Stack()))
			result = ErrorResult(ReasonInternal)
		}
	}()

	buf, err := imaging.Decode(image)
	if err != nil {
		e.logger.Warn("ANALYZE_DECODE_FAILED", "crop", cropType, "bytes", len(image), "error", err)
		return ErrorResult(ReasonDecode)
	}
	return e.Diagnose(ctx, buf, cropType, validDiseases)
}

// Diagnose runs the pipeline on an already decoded buffer.
func (e *Engine) Diagnose(ctx context.Context, buf *imaging.Buffer, cropType string, validDiseases []string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("ANALYZE_PANIC", "crop", cropType, "panic", r, "stack", string(debug.Stack()))
			result = ErrorResult(ReasonInternal)
		}
	}()

	start := time.Now()
	crop := strings.ToLower(strings.TrimSpace(cropType))

	if !e.gate.Admit(buf) {
		e.logger.Info("ANALYZE_IRRELEVANT", "crop", crop, "width", buf.Width, "height", buf.Height)
		return Irrelevant()
	}

	kb := e.kb.Current()
	labels := validDiseases
	if labels == nil {
		labels, _ = kb.Profile(crop)
	}

	p1, p2, err := e.infer(ctx, buf, labels)
	if err != nil {
		e.logger.Warn("ADAPTER_FAILURE", "crop", crop, "error", err, "elapsed", time.Since(start))
		return ErrorResult(ReasonModelFailure)
	}

	fused := ensemble.Fuse(p1, p2, e.weights)
	if fused.Source == ensemble.SourceTieBreak {
		e.logger.Debug("FUSION_TIE", "primary", p1.Label, "secondary", p2.Label, "confidence", p1.Confidence)
	}

	advice := kb.Advise(crop, fused.Label)
	if advice.Miss {
		e.logger.Debug("LOOKUP_MISS", "crop", crop, "label", fused.Label)
	}

	result = Result{
		Disease:    fused.Label,
		Confidence: fused.Confidence,
		Severity:   Severity(fused.Label, fused.Confidence),
		Symptoms:   advice.Symptoms,
		Treatment:  advice.Treatment,
		Prevention: advice.Prevention,
	}
	e.logger.Info("ANALYZE_COMPLETE",
		"crop", crop,
		"disease", result.Disease,
		"confidence", result.Confidence,
		"severity", result.Severity,
		"primary", p1.Label,
		"secondary", p2.Label,
		"source", fused.Source,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return result
}

// infer runs both adapters concurrently under the engine deadline.
func (e *Engine) infer(ctx context.Context, buf *imaging.Buffer, labels []string) (inference.Prediction, inference.Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var p1, p2 inference.Prediction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p1, err = run(gctx, e.primary, buf, labels)
		return err
	})
	g.Go(func() (err error) {
		p2, err = run(gctx, e.secondary, buf, labels)
		return err
	})
	if err := g.Wait(); err != nil {
		return p1, p2, err
	}
	return p1, p2, nil
}

// run invokes one adapter, enforcing the adapter contract and converting
// panics and deadline expiry into AdapterErrors.
func run(ctx context.Context, a inference.Adapter, buf *imaging.Buffer, labels []string) (pred inference.Prediction, err error) {
	if a == nil {
		return pred, &inference.AdapterError{Adapter: "unavailable", Err: errors.New("adapter not initialized")}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &inference.AdapterError{Adapter: a.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	pred, err = a.Predict(ctx, buf, labels)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		var ae *inference.AdapterError
		if !errors.As(err, &ae) {
			err = &inference.AdapterError{Adapter: a.Name(), Err: err}
		}
		return pred, err
	}
	if !validLabel(pred.Label, labels) {
		return pred, &inference.AdapterError{Adapter: a.Name(), Err: fmt.Errorf("label %q is not a candidate", pred.Label)}
	}
	pred.Confidence = inference.ClampConfidence(pred.Confidence)
	return pred, nil
}

func validLabel(label string, labels []string) bool {
	if len(labels) == 0 {
		return label == inference.UnknownLabel
	}
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
