package httpserver_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"emailwriter/internal/handler"
	"emailwriter/internal/httpserver"
	"emailwriter/internal/service/gemini"
	"emailwriter/internal/service/reply"
	"emailwriter/pkg/config"
	"emailwriter/pkg/trace"
)

type stack struct {
	router   *httpserver.Router
	upstream *httptest.Server
	client   *gemini.Client
}

func newStack(t *testing.T, upstream http.HandlerFunc, timeout time.Duration, cb config.CircuitBreakerConfig) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	httpClient := srv.Client()
	httpClient.Timeout = timeout

	logger := zap.NewNop()
	client := gemini.NewClient(config.GeminiConfig{
		APIURL:         srv.URL + "/v1beta/models/gemini:generateContent",
		APIKey:         "k",
		CircuitBreaker: cb,
	}, httpClient, logger)
	emailHandler := handler.NewEmailHandler(reply.NewService(client, logger), 0)

	return &stack{
		router:   httpserver.NewRouter(emailHandler, client, []string{"https://mail.google.com"}, logger),
		upstream: srv,
		client:   client,
	}
}

func (s *stack) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)
	return w
}

func geminiReply(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
			},
		})
	}
}

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func TestGenerateEndToEnd(t *testing.T) {
	var upstreamBody string
	s := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		upstreamBody = string(b)
		geminiReply("Sure, let's reschedule to Friday.")(w, r)
	}, 5*time.Second, config.CircuitBreakerConfig{})

	w := s.do(http.MethodPost, "/api/email/generate",
		`{"emailContent":"Can we reschedule?","tone":"friendly"}`, jsonHeaders)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Sure, let's reschedule to Friday.", w.Body.String())
	assert.Contains(t, upstreamBody, "Use a friendly toneOriginal email content: \\nCan we reschedule?")
	assert.NotEmpty(t, w.Header().Get(trace.HeaderName))
}

func TestGenerateEndToEndUpstreamTimeout(t *testing.T) {
	release := make(chan struct{})
	s := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond, config.CircuitBreakerConfig{})
	defer close(release)

	w := s.do(http.MethodPost, "/api/email/generate",
		`{"emailContent":"Can we reschedule?","tone":"friendly"}`, jsonHeaders)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Error generating email reply", w.Body.String())
}

func TestGenerateEndToEndUpstreamDown(t *testing.T) {
	s := newStack(t, geminiReply("unused"), 5*time.Second, config.CircuitBreakerConfig{})
	s.upstream.Close()

	w := s.do(http.MethodPost, "/api/email/generate", `{"emailContent":"hi"}`, jsonHeaders)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Error generating email reply", w.Body.String())
}

func TestTraceIDIsEchoed(t *testing.T) {
	s := newStack(t, geminiReply("ok"), 5*time.Second, config.CircuitBreakerConfig{})

	w := s.do(http.MethodPost, "/api/email/generate", `{"emailContent":"hi"}`,
		map[string]string{"Content-Type": "application/json", trace.HeaderName: "abc-123"})

	assert.Equal(t, "abc-123", w.Header().Get(trace.HeaderName))
}

func TestHealthEndpoints(t *testing.T) {
	s := newStack(t, geminiReply("ok"), 5*time.Second, config.CircuitBreakerConfig{})

	for _, path := range []string{"/healthz", "/health"} {
		w := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

		w = s.do(http.MethodHead, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := s.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
}

func TestReadyzReportsOpenCircuit(t *testing.T) {
	s := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, 5*time.Second, config.CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute})

	w := s.do(http.MethodPost, "/api/email/generate", `{"emailContent":"hi"}`, jsonHeaders)
	require.Equal(t, "Error generating email reply", w.Body.String())

	w = s.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"gemini_circuit_open"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newStack(t, geminiReply("ok"), 5*time.Second, config.CircuitBreakerConfig{})
	s.do(http.MethodPost, "/api/email/generate", `{"emailContent":"hi"}`, jsonHeaders)

	w := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "email_reply_generated_total")
	assert.Contains(t, w.Body.String(), "gemini_call_latency_ms")
}

func TestCORSPreflight(t *testing.T) {
	s := newStack(t, geminiReply("ok"), 5*time.Second, config.CircuitBreakerConfig{})

	w := s.do(http.MethodOptions, "/api/email/generate", "", map[string]string{
		"Origin":                         "https://mail.google.com",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "Content-Type",
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://mail.google.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = s.do(http.MethodOptions, "/api/email/generate", "", map[string]string{
		"Origin":                        "https://evil.example",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
