package chat

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type captured struct {
	path  string
	auth  string
	body  upstreamRequest
	count int
}

func newProvider(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.count++
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestBaseURLRouting(t *testing.T) {
	p := NewProxy("k", "", "https://deepseek.test/", "https://qwen.test", time.Second)

	tests := []struct {
		model string
		want  string
	}{
		{model: "deepseek-chat", want: "https://deepseek.test"},
		{model: "qwen-max", want: "https://qwen.test"},
		{model: "Qwen2.5-72B", want: "https://qwen.test"},
		{model: "", want: "https://deepseek.test"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.model, func(t *testing.T) {
			if got := p.BaseURL(tt.model); got != tt.want {
				t.Fatalf("BaseURL(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestHandlerForwardsAndPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deepseek, dsGot := newProvider(t, http.StatusOK, `{"id":"c1","choices":[{"message":{"role":"assistant","content":"hi"}}]}`)
	qwen, qwGot := newProvider(t, http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`)

	router := gin.New()
	NewHandler(NewProxy("secret-key", "deepseek-chat", deepseek.URL, qwen.URL, time.Second)).RegisterRoutes(router.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/completions", strings.NewReader(`{"messages":[{"role":"user","content":"hello"}]}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"id":"c1"`) {
		t.Fatalf("expected provider body, got %s", resp.Body.String())
	}
	if dsGot.path != "/v1/chat/completions" || dsGot.auth != "Bearer secret-key" {
		t.Fatalf("unexpected upstream call %+v", dsGot)
	}
	if dsGot.body.Model != "deepseek-chat" || dsGot.body.Temperature != 0.7 || len(dsGot.body.Messages) != 1 {
		t.Fatalf("unexpected upstream body %+v", dsGot.body)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat/completions", strings.NewReader(`{"model":"qwen-plus","temperature":0,"messages":[{"role":"user","content":"x"}]}`))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected provider status 429, got %d", resp.Code)
	}
	if qwGot.count != 1 || qwGot.body.Temperature != 0 {
		t.Fatalf("expected qwen call with explicit temperature, got %+v", qwGot)
	}
}

func TestHandlerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	router := gin.New()
	NewHandler(NewProxy("k", "", deadURL, deadURL, time.Second)).RegisterRoutes(router.Group("/api/v1"))

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "missing messages", body: `{"model":"deepseek-chat"}`, want: http.StatusBadRequest},
		{name: "messages not array", body: `{"messages":"hi"}`, want: http.StatusBadRequest},
		{name: "provider down", body: `{"messages":[{"role":"user","content":"x"}]}`, want: http.StatusBadGateway},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/completions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, resp.Code, resp.Body.String())
			}
		})
	}
}
