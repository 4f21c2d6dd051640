// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/jeranaias/planthealth/internal/config"
	"github.com/jeranaias/planthealth/internal/diagnosis"
	"github.com/jeranaias/planthealth/internal/imaging"
	"github.com/jeranaias/planthealth/internal/inference"
	"github.com/jeranaias/planthealth/internal/knowledge"
	"github.com/jeranaias/planthealth/internal/session"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxQueryLength is the maximum length of one chat message.
	MaxQueryLength = 100000

	// MaxMessageCount is the maximum number of messages in a chat request.
	MaxMessageCount = 100

	// MaxChatBodySize caps chat request bodies (1MB).
	MaxChatBodySize = 1 * 1024 * 1024

	// jsonOverhead is added to the analyze body cap on top of the base64 image.
	jsonOverhead = 64 * 1024

	// DefaultQueueTimeout bounds how long an analyze request waits for a slot.
	DefaultQueueTimeout = 10 * time.Second
)

// Error messages returned to clients.
const (
	msgNoData          = "No data provided"
	msgImageRequired   = "Image data is required"
	msgCropRequired    = "Crop type is required"
	msgAnalysisFailed  = "Analysis failed. Please try again."
	msgMessagesMissing = "Messages are required"
	msgBadMessage      = "Invalid message format. Messages must have role user, assistant or system"
	msgChatFailed      = "Chat service unavailable. Please try again."
	msgBusy            = "Server busy. Please try again."
	msgNotFound        = "Endpoint not found"
	msgMethod          = "Method not allowed"
)

var validRoles = map[string]bool{
	session.RoleUser:      true,
	session.RoleAssistant: true,
	"system":              true,
}

// ============================================================================
// COLLABORATORS
// ============================================================================

// Analyzer runs leaf diagnoses. *diagnosis.Engine satisfies it.
type Analyzer interface {
	Predict(ctx context.Context, image []byte, cropType string, validDiseases []string) diagnosis.Result
	Adapters() []inference.Status
	Knowledge() *knowledge.Base
}

// Responder answers chat turns. *chat.Assistant satisfies it.
type Responder interface {
	Respond(ctx context.Context, messages []session.Message, language, sessionID, userID string) string
	Loaded() bool
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the plant health HTTP API.
type Server struct {
	cfg       config.ServerConfig
	router    *http.ServeMux
	server    *http.Server
	analyzer  Analyzer
	assistant Responder
	slots     *semaphore.Weighted
	limiter   *RateLimiter
	logger    *log.Logger

	version      string
	queueTimeout time.Duration
	startTime    time.Time

	mu sync.Mutex
}

// New creates a Server. Zero fields in cfg fall back to config defaults.
func New(cfg config.ServerConfig, analyzer Analyzer, assistant Responder) *Server {
	def := config.Default().Server
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.MaxConcurrentAnalyses <= 0 {
		cfg.MaxConcurrentAnalyses = def.MaxConcurrentAnalyses
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = def.RateBurst
	}
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}

	s := &Server{
		cfg:          cfg,
		router:       http.NewServeMux(),
		analyzer:     analyzer,
		assistant:    assistant,
		slots:        semaphore.NewWeighted(int64(cfg.MaxConcurrentAnalyses)),
		limiter:      NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:       log.New(io.Discard),
		version:      "dev",
		queueTimeout: DefaultQueueTimeout,
		startTime:    time.Now(),
	}
	s.setupRoutes()
	return s
}

// WithLogger sets the server logger.
func (s *Server) WithLogger(l *log.Logger) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
	return s
}

// WithVersion sets the version reported by the health endpoint.
func (s *Server) WithVersion(v string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
	return s
}

// WithQueueTimeout sets how long analyze requests wait for a free slot.
func (s *Server) WithQueueTimeout(d time.Duration) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queueTimeout = d
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.cfg.Addr() }

// ============================================================================
// ROUTES
// ============================================================================

var knownPaths = map[string]bool{
	"/api/health":       true,
	"/api/crops":        true,
	"/api/analyze-crop": true,
	"/api/chat":         true,
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /api/health", s.handleHealth)
	s.router.HandleFunc("GET /api/crops", s.handleCrops)
	s.router.HandleFunc("POST /api/analyze-crop", s.handleAnalyze)
	s.router.HandleFunc("POST /api/chat", s.handleChat)
	s.router.HandleFunc("/", s.handleFallback)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.logger),
		RequestIDMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(s.limiter, s.logger),
		CORSMiddleware(DefaultCORSConfig(s.cfg.AllowedOrigins)),
	)(s.router)
}

// ============================================================================
// HEALTH
// ============================================================================

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string             `json:"status"`
	Timestamp string             `json:"timestamp"`
	Version   string             `json:"version"`
	Uptime    string             `json:"uptime"`
	Models    map[string]bool    `json:"models"`
	Adapters  []inference.Status `json:"adapters"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	adapters := s.analyzer.Adapters()
	loaded := func(i int) bool { return i < len(adapters) && adapters[i].Loaded }

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Models: map[string]bool{
			"efficientnet_b4": loaded(0),
			"vit_b16":         loaded(1),
			"chat_model":      s.assistant != nil && s.assistant.Loaded(),
		},
		Adapters: adapters,
	})
}

// ============================================================================
// CROPS
// ============================================================================

// CropInfo describes one supported crop.
type CropInfo struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	ScientificName string   `json:"scientificName"`
	Diseases       []string `json:"diseases"`
}

func (s *Server) handleCrops(w http.ResponseWriter, r *http.Request) {
	kb := s.analyzer.Knowledge()
	crops := make([]CropInfo, 0)
	for _, id := range kb.Crops() {
		c, _ := kb.Crop(id)
		crops = append(crops, CropInfo{ID: id, Name: c.Name, ScientificName: c.ScientificName, Diseases: c.Diseases})
	}
	writeJSON(w, http.StatusOK, map[string]any{"crops": crops})
}

// ============================================================================
// ANALYZE
// ============================================================================

// AnalyzeRequest is the body of POST /api/analyze-crop.
type AnalyzeRequest struct {
	Image    string `json:"image"`
	CropType string `json:"cropType"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxUploadBytes/3*4 + jsonOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req *AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req == nil {
		if s.tooLarge(w, err, limit) {
			return
		}
		writeError(w, http.StatusBadRequest, msgNoData)
		return
	}

	crop := strings.ToLower(strings.TrimSpace(req.CropType))
	if req.Image == "" {
		writeError(w, http.StatusBadRequest, msgImageRequired)
		return
	}
	if crop == "" {
		writeError(w, http.StatusBadRequest, msgCropRequired)
		return
	}

	payload := imaging.StripDataURI(req.Image)
	data, err := imaging.DecodeBase64(payload.Data)
	if err != nil {
		var ve *imaging.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Message)
			return
		}
		writeError(w, http.StatusBadRequest, msgNoData)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Image exceeds maximum size of %d bytes", s.cfg.MaxUploadBytes))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.queueTimeout)
	err = s.slots.Acquire(ctx, 1)
	cancel()
	if err != nil {
		s.logger.Warn("ANALYZE_BUSY", "crop", crop, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusServiceUnavailable, msgBusy)
		return
	}
	defer s.slots.Release(1)

	valid := []string{}
	if profile, ok := s.analyzer.Knowledge().Profile(crop); ok {
		valid = profile
	}

	s.logger.Info("ANALYZE_START", "crop", crop, "bytes", len(data), "mime", payload.MIMEType,
		"request_id", RequestIDFromContext(r.Context()))

	result, ok := s.analyze(r.Context(), data, crop, valid)
	if !ok {
		writeError(w, http.StatusInternalServerError, msgAnalysisFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) analyze(ctx context.Context, data []byte, crop string, valid []string) (result diagnosis.Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("ANALYZE_PANIC", "crop", crop, "panic", r, "stack", string(debug.Stack()))
			ok = false
		}
	}()
	return s.analyzer.Predict(ctx, data, crop, valid), true
}

// ============================================================================
// CHAT
// ============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages  []session.Message `json:"messages"`
	Language  string            `json:"language"`
	SessionID string            `json:"sessionId"`
	UserID    string            `json:"userId"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxChatBodySize)

	var req *ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req == nil {
		if s.tooLarge(w, err, MaxChatBodySize) {
			return
		}
		writeError(w, http.StatusBadRequest, msgNoData)
		return
	}

	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, msgMessagesMissing)
		return
	}
	if len(req.Messages) > MaxMessageCount {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Too many messages: maximum is %d", MaxMessageCount))
		return
	}
	for i, m := range req.Messages {
		if !validRoles[m.Role] {
			writeError(w, http.StatusBadRequest, msgBadMessage)
			return
		}
		if len(m.Content) > MaxQueryLength {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Message %d exceeds maximum length of %d", i, MaxQueryLength))
			return
		}
	}
	if req.Language == "" {
		req.Language = "en"
	}

	s.logger.Info("CHAT_REQUEST", "session", req.SessionID, "language", req.Language,
		"messages", len(req.Messages), "request_id", RequestIDFromContext(r.Context()))

	reply, ok := s.respond(r.Context(), req)
	if !ok {
		writeError(w, http.StatusInternalServerError, msgChatFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (s *Server) respond(ctx context.Context, req *ChatRequest) (reply string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("CHAT_PANIC", "panic", r, "stack", string(debug.Stack()))
			ok = false
		}
	}()
	if s.assistant == nil {
		return "", false
	}
	return s.assistant.Respond(ctx, req.Messages, req.Language, req.SessionID, req.UserID), true
}

// ============================================================================
// FALLBACK
// ============================================================================

func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if knownPaths[r.URL.Path] {
		writeError(w, http.StatusMethodNotAllowed, msgMethod)
		return
	}
	writeError(w, http.StatusNotFound, msgNotFound)
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("SERVER_START", "addr", ln.Addr().String(), "version", s.version,
		"max_concurrent_analyses", s.cfg.MaxConcurrentAnalyses)

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until ctx is done, then shuts down within the configured
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("SERVER_SHUTDOWN", "uptime", time.Since(s.startTime).Round(time.Second))
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) tooLarge(w http.ResponseWriter, err error, limit int64) bool {
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		return false
	}
	writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds maximum size of %d bytes", limit))
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
