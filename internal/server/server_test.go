// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/planthealth/internal/chat"
	"github.com/jeranaias/planthealth/internal/config"
	"github.com/jeranaias/planthealth/internal/diagnosis"
	"github.com/jeranaias/planthealth/internal/inference"
	"github.com/jeranaias/planthealth/internal/knowledge"
	"github.com/jeranaias/planthealth/internal/router"
	"github.com/jeranaias/planthealth/internal/session"
)

// =============================================================================
// HELPERS
// =============================================================================

type fakeAnalyzer struct {
	kb      *knowledge.Base
	result  diagnosis.Result
	panic   bool
	release chan struct{}
	started chan struct{}

	mu    sync.Mutex
	crop  string
	valid []string
	bytes int
}

func (f *fakeAnalyzer) Predict(ctx context.Context, image []byte, crop string, valid []string) diagnosis.Result {
	f.mu.Lock()
	f.crop, f.valid, f.bytes = crop, valid, len(image)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.panic {
		panic("boom")
	}
	return f.result
}

func (f *fakeAnalyzer) Adapters() []inference.Status {
	return []inference.Status{{Name: "efficientnet_b4", Loaded: true}, {Loaded: false}}
}

func (f *fakeAnalyzer) Knowledge() *knowledge.Base { return f.kb }

type fakeResponder struct {
	panic bool

	mu       sync.Mutex
	language string
	session  string
	messages []session.Message
}

func (f *fakeResponder) Respond(_ context.Context, msgs []session.Message, lang, sessionID, _ string) string {
	f.mu.Lock()
	f.language, f.session, f.messages = lang, sessionID, msgs
	f.mu.Unlock()
	if f.panic {
		panic("boom")
	}
	return "reply"
}

func (f *fakeResponder) Loaded() bool { return true }

func testConfig() config.ServerConfig {
	cfg := config.Default().Server
	cfg.RateLimit = 10000
	cfg.RateBurst = 10000
	cfg.AllowedOrigins = []string{"https://planthealth123.lovable.app"}
	return cfg
}

func embeddedKB(t *testing.T) *knowledge.Base {
	t.Helper()
	kb, err := knowledge.Embedded()
	require.NoError(t, err)
	return kb
}

func newTestServer(t *testing.T, a Analyzer, r Responder) http.Handler {
	t.Helper()
	return New(testConfig(), a, r).WithVersion("test").Handler()
}

func leafBase64(t *testing.T, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 48, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, message, decode(t, rec)["error"])
}

// =============================================================================
// HEALTH AND CROPS
// =============================================================================

func TestHealth(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{kb: embeddedKB(t)}, &fakeResponder{})

	rec := do(h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "test", body.Version)
	assert.Equal(t, map[string]bool{"efficientnet_b4": true, "vit_b16": false, "chat_model": true}, body.Models)
	_, err := time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err)
}

func TestCrops(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{kb: embeddedKB(t)}, &fakeResponder{})

	rec := do(h, http.MethodGet, "/api/crops", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Crops []CropInfo `json:"crops"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Crops, 15)
	assert.Equal(t, "apple", body.Crops[0].ID)
	assert.Contains(t, body.Crops[0].Diseases, "Healthy")
}

// =============================================================================
// ANALYZE
// =============================================================================

func TestAnalyze_Success(t *testing.T) {
	a := &fakeAnalyzer{kb: embeddedKB(t), result: diagnosis.Result{
		Disease: "Late Blight", Confidence: 84.8, Severity: "Medium",
		Symptoms: []string{"s"}, Treatment: []string{"t"}, Prevention: []string{"p"},
	}}
	h := newTestServer(t, a, &fakeResponder{})

	img := leafBase64(t, color.NRGBA{G: 200, A: 255})
	body := `{"image":"data:image/png;base64,` + img + `","cropType":" Potato "}`
	rec := do(h, http.MethodPost, "/api/analyze-crop", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode(t, rec)["result"].(map[string]any)
	assert.Equal(t, "Late Blight", result["disease"])
	assert.Equal(t, 84.8, result["confidence"])
	assert.Equal(t, false, result["isIrrelevant"])

	assert.Equal(t, "potato", a.crop)
	profile, _ := a.kb.Profile("potato")
	assert.Equal(t, profile, a.valid)
	assert.Positive(t, a.bytes)
}

func TestAnalyze_UnknownCropPassesEmptyLabels(t *testing.T) {
	a := &fakeAnalyzer{kb: embeddedKB(t)}
	h := newTestServer(t, a, &fakeResponder{})

	body := `{"image":"` + leafBase64(t, color.NRGBA{G: 200, A: 255}) + `","cropType":"banana"}`
	rec := do(h, http.MethodPost, "/api/analyze-crop", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, a.valid)
	assert.Empty(t, a.valid)
}

func TestAnalyze_Validation(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{kb: embeddedKB(t)}, &fakeResponder{})
	img := leafBase64(t, color.NRGBA{G: 200, A: 255})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "No data provided"},
		{"null", "null", "No data provided"},
		{"not json", "image=abc", "No data provided"},
		{"missing image", `{"cropType":"tomato"}`, "Image data is required"},
		{"missing crop", `{"image":"` + img + `"}`, "Crop type is required"},
		{"blank crop", `{"image":"` + img + `","cropType":"  "}`, "Crop type is required"},
		{"bad base64", `{"image":"!!!!","cropType":"tomato"}`, "Invalid base64 encoding"},
		{"too short", `{"image":"aGVsbG8=","cropType":"tomato"}`, "Invalid image data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, do(h, http.MethodPost, "/api/analyze-crop", tt.body), http.StatusBadRequest, tt.want)
		})
	}
}

func TestAnalyze_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 1024
	h := New(cfg, &fakeAnalyzer{kb: embeddedKB(t)}, &fakeResponder{}).Handler()

	big := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 200*1024))
	rec := do(h, http.MethodPost, "/api/analyze-crop", `{"image":"`+big+`","cropType":"tomato"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	mid := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 2048))
	rec = do(h, http.MethodPost, "/api/analyze-crop", `{"image":"`+mid+`","cropType":"tomato"}`)
	assertError(t, rec, http.StatusRequestEntityTooLarge, "Image exceeds maximum size of 1024 bytes")
}

func TestAnalyze_Panic(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{kb: embeddedKB(t), panic: true}, &fakeResponder{})

	body := `{"image":"` + leafBase64(t, color.NRGBA{G: 200, A: 255}) + `","cropType":"tomato"}`
	assertError(t, do(h, http.MethodPost, "/api/analyze-crop", body),
		http.StatusInternalServerError, "Analysis failed. Please try again.")
}

func TestAnalyze_Busy(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentAnalyses = 1
	a := &fakeAnalyzer{kb: embeddedKB(t), release: make(chan struct{}), started: make(chan struct{}, 1)}
	h := New(cfg, a, &fakeResponder{}).WithQueueTimeout(20 * time.Millisecond).Handler()
	body := `{"image":"` + leafBase64(t, color.NRGBA{G: 200, A: 255}) + `","cropType":"tomato"}`

	done := make(chan int)
	go func() { done <- do(h, http.MethodPost, "/api/analyze-crop", body).Code }()
	<-a.started

	assertError(t, do(h, http.MethodPost, "/api/analyze-crop", body), http.StatusServiceUnavailable, "Server busy. Please try again.")

	close(a.release)
	assert.Equal(t, http.StatusOK, <-done)
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_Success(t *testing.T) {
	r := &fakeResponder{}
	h := newTestServer(t, &fakeAnalyzer{kb: embeddedKB(t)}, r)

	rec := do(h, http.MethodPost, "/api/chat",
		`{"messages":[{"role":"user","content":"blight?"}],"sessionId":"s1","userId":"u1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reply", decode(t, rec)["response"])
	assert.Equal(t, "en", r.language, "language defaults to en")
	assert.Equal(t, "s1", r.session)
	require.Len(t, r.messages, 1)
	assert.Equal(t, "blight?", r.messages[0].Content)
}

func TestChat_Validation(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{kb: embeddedKB(t)}, &fakeResponder{})

	many := make([]string, MaxMessageCount+1)
	for i := range many {
		many[i] = `{"role":"user","content":"hi"}`
	}
	long := strings.Repeat("a", MaxQueryLength+1)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", "No data provided"},
		{"null", "null", "No data provided"},
		{"no messages", `{"language":"hi"}`, "Messages are required"},
		{"empty messages", `{"messages":[]}`, "Messages are required"},
		{"bad role", `{"messages":[{"role":"tool","content":"x"}]}`, msgBadMessage},
		{"too many", `{"messages":[` + strings.Join(many, ",") + `]}`, "Too many messages: maximum is 100"},
		{"too long", `{"messages":[{"role":"user","content":"` + long + `"}]}`, "Message 0 exceeds maximum length of 100000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, do(h, http.MethodPost, "/api/chat", tt.body), http.StatusBadRequest, tt.want)
		})
	}
}

func TestChat_Panic(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{kb: embeddedKB(t)}, &fakeResponder{panic: true})
	rec := do(h, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	assertError(t, rec, http.StatusInternalServerError, "Chat service unavailable. Please try again.")
}

func TestChat_BodyTooLarge(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{kb: embeddedKB(t)}, &fakeResponder{})
	body := `{"messages":[{"role":"user","content":"` + strings.Repeat("a", MaxChatBodySize) + `"}]}`
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(h, http.MethodPost, "/api/chat", body).Code)
}

// =============================================================================
// ROUTING AND MIDDLEWARE
// =============================================================================

func TestFallbackRoutes(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{kb: embeddedKB(t)}, &fakeResponder{})

	assertError(t, do(h, http.MethodGet, "/api/unknown", ""), http.StatusNotFound, "Endpoint not found")
	assertError(t, do(h, http.MethodGet, "/", ""), http.StatusNotFound, "Endpoint not found")
	assertError(t, do(h, http.MethodGet, "/api/chat", ""), http.StatusMethodNotAllowed, "Method not allowed")
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{kb: embeddedKB(t)}, &fakeResponder{})

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze-crop", nil)
	req.Header.Set("Origin", "https://planthealth123.lovable.app")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://planthealth123.lovable.app", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig_AllowOrigin(t *testing.T) {
	c := DefaultCORSConfig([]string{"https://a.example", "*.farm.example"})
	assert.Equal(t, "https://a.example", c.allowOrigin("https://a.example"))
	assert.Equal(t, "https://x.farm.example", c.allowOrigin("https://x.farm.example"))
	assert.Empty(t, c.allowOrigin("https://b.example"))
	assert.Empty(t, c.allowOrigin(""))

	wild := DefaultCORSConfig([]string{"*"})
	assert.Equal(t, "*", wild.allowOrigin("https://anything.example"))
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{kb: embeddedKB(t)}, &fakeResponder{})

	rec := do(h, http.MethodGet, "/api/health", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "bad id\r\n")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "bad id\r\n", rec.Header().Get(RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 2
	h := New(cfg, &fakeAnalyzer{kb: embeddedKB(t)}, &fakeResponder{}).Handler()

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/health", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/health", "").Code)
	rec := do(h, http.MethodGet, "/api/health", "")
	assertError(t, rec, http.StatusTooManyRequests, "Too many requests. Please slow down.")
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "buckets are per IP")
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(New(testConfig(), nil, nil).logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assertError(t, rec, http.StatusInternalServerError, "Internal server error")
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.5:1234", "", "", "203.0.113.5"},
		{"untrusted xff ignored", "203.0.113.5:1234", "1.2.3.4", "", "203.0.113.5"},
		{"trusted xff", "10.0.0.2:1234", "1.2.3.4, 10.0.0.2", "", "1.2.3.4"},
		{"trusted invalid xff", "10.0.0.2:1234", "not-an-ip", "5.6.7.8", "5.6.7.8"},
		{"no port", "192.0.2.9", "", "", "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}

func TestRateLimiter_Visitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 2, rl.Visitors())
}

// =============================================================================
// END TO END
// =============================================================================

func TestEndToEnd(t *testing.T) {
	store, err := knowledge.Open("", nil)
	require.NoError(t, err)
	engine, err := diagnosis.New(inference.NewEfficientNet(), inference.NewViT(), store)
	require.NoError(t, err)
	sessions := session.NewMemoryStore()
	defer sessions.Close()
	assistant := chat.New(sessions, router.New(), nil)

	srv := New(testConfig(), engine, assistant).WithVersion("e2e")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// A red image is rejected by the plant gate.
	body := `{"image":"` + leafBase64(t, color.NRGBA{R: 220, G: 20, B: 20, A: 255}) + `","cropType":"tomato"}`
	resp, err := http.Post(ts.URL+"/api/analyze-crop", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	var analyzed struct {
		Result diagnosis.Result `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&analyzed))
	resp.Body.Close()
	assert.Equal(t, diagnosis.DiseaseIrrelevant, analyzed.Result.Disease)
	assert.True(t, analyzed.Result.IsIrrelevant)

	// A green leaf is diagnosed with one of the crop's labels.
	body = `{"image":"` + leafBase64(t, color.NRGBA{R: 40, G: 160, B: 50, A: 255}) + `","cropType":"tomato"}`
	resp, err = http.Post(ts.URL+"/api/analyze-crop", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&analyzed))
	resp.Body.Close()
	profile, _ := store.Current().Profile("tomato")
	assert.Contains(t, profile, analyzed.Result.Disease)
	assert.False(t, analyzed.Result.IsIrrelevant)

	// Chat routes and records the exchange.
	resp, err = http.Post(ts.URL+"/api/chat", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"Which fungicide for blight?"}],"sessionId":"abc"}`))
	require.NoError(t, err)
	var chatted struct {
		Response string `json:"response"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chatted))
	resp.Body.Close()
	assert.Equal(t, chat.Reply(router.IntentDisease), chatted.Response)

	history, err := sessions.History(context.Background(), "abc")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestServe_Shutdown(t *testing.T) {
	srv := New(testConfig(), &fakeAnalyzer{kb: embeddedKB(t)}, &fakeResponder{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}
