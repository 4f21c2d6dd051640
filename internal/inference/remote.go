// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jeranaias/planthealth/internal/imaging"
)

// RemoteOptions configures the OpenAI-compatible vision adapter.
type RemoteOptions struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Remote asks a hosted vision model to pick a label.
type Remote struct {
	client    openai.Client
	model     string
	maxTokens int
	logger    *log.Logger
}

// ErrMissingAPIKey is returned when the remote adapter has no credentials.
var ErrMissingAPIKey = errors.New("remote adapter requires an API key")

// NewRemote builds the adapter. It does not contact the endpoint.
func NewRemote(opts RemoteOptions, logger *log.Logger) (*Remote, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("remote adapter requires a model name")
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(1),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Remote{
		client:    openai.NewClient(clientOpts...),
		model:     opts.Model,
		maxTokens: maxTokens,
		logger:    logger,
	}, nil
}

// Name implements Adapter.
func (r *Remote) Name() string { return "remote:" + r.model }

// remoteAnswer is the JSON object the model is instructed to return.
type remoteAnswer struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
}

// Predict implements Adapter.
func (r *Remote) Predict(ctx context.Context, img *imaging.Buffer, labels []string) (Prediction, error) {
	if err := checkInput(img); err != nil {
		return Prediction{}, &AdapterError{Adapter: r.Name(), Err: err}
	}
	if len(labels) == 0 {
		return Prediction{Label: UnknownLabel}, nil
	}

	png, err := img.EncodePNG()
	if err != nil {
		return Prediction{}, &AdapterError{Adapter: r.Name(), Err: err}
	}

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(labels)),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart("Analyze this leaf image and pick exactly one label from the list."),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: imaging.EncodeDataURI("image/png", png),
				}),
			}),
		},
		MaxCompletionTokens: openai.Int(int64(r.maxTokens)),
		Temperature:         openai.Float(0),
	})
	if err != nil {
		return Prediction{}, &AdapterError{Adapter: r.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return Prediction{}, &AdapterError{Adapter: r.Name(), Err: errors.New("empty completion")}
	}

	content := resp.Choices[0].Message.Content
	pred, err := parseAnswer(content, labels)
	if err != nil {
		r.logger.Warn("REMOTE_PARSE_FAILED", "model", r.model, "error", err)
		return Prediction{}, &AdapterError{Adapter: r.Name(), Err: err}
	}
	r.logger.Debug("REMOTE_PREDICT", "model", r.model, "label", pred.Label, "confidence", pred.Confidence)
	return pred, nil
}

func systemPrompt(labels []string) string {
	var b strings.Builder
	b.WriteString("You are a plant pathologist classifying a single leaf photograph.\n")
	b.WriteString("Choose the one label below that best matches the leaf:\n")
	for _, l := range labels {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString(`Respond ONLY with a JSON object: {"disease": "<label from the list>", "confidence": <number 0-100>}`)
	return b.String()
}

// parseAnswer extracts the JSON object from a reply, tolerating markdown
// fences, and maps the disease onto the candidate list case-insensitively.
func parseAnswer(content string, labels []string) (Prediction, error) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	if start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); start >= 0 && end > start {
		s = s[start : end+1]
	}

	var ans remoteAnswer
	if err := json.Unmarshal([]byte(s), &ans); err != nil {
		return Prediction{}, fmt.Errorf("decode model reply: %w", err)
	}
	for _, l := range labels {
		if strings.EqualFold(strings.TrimSpace(ans.Disease), l) {
			return Prediction{Label: l, Confidence: ClampConfidence(ans.Confidence)}, nil
		}
	}
	return Prediction{}, fmt.Errorf("model answered %q, which is not a candidate label", ans.Disease)
}
