// Package chat forwards chat completion requests to OpenAI-compatible
// providers.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aicv-backend/internal/shared/telemetry"
)

const (
	completionsPath    = "/v1/chat/completions"
	defaultTemperature = 0.7
	maxResponseSize    = 8 << 20
)

var (
	ErrInvalidMessages = errors.New("messages must be a non-empty array")
	ErrUpstream        = errors.New("chat provider unreachable")
)

// Request is the inbound completion request.
type Request struct {
	Messages    []json.RawMessage `json:"messages"`
	Model       string            `json:"model"`
	Temperature *float64          `json:"temperature"`
}

// Response is the provider reply, passed through unchanged.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

type upstreamRequest struct {
	Model       string            `json:"model"`
	Messages    []json.RawMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
}

// Proxy routes each request to DeepSeek or DashScope by model name.
type Proxy struct {
	apiKey       string
	defaultModel string
	deepSeekURL  string
	qwenURL      string
	httpClient   *http.Client
}

// NewProxy constructs a Proxy.
func NewProxy(apiKey, defaultModel, deepSeekURL, qwenURL string, timeout time.Duration) *Proxy {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if strings.TrimSpace(defaultModel) == "" {
		defaultModel = "deepseek-chat"
	}
	return &Proxy{
		apiKey:       apiKey,
		defaultModel: defaultModel,
		deepSeekURL:  strings.TrimRight(deepSeekURL, "/"),
		qwenURL:      strings.TrimRight(qwenURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// BaseURL picks the provider for a model.
func (p *Proxy) BaseURL(model string) string {
	if strings.Contains(strings.ToLower(model), "qwen") {
		return p.qwenURL
	}
	return p.deepSeekURL
}

// Complete forwards one request. Provider error statuses are returned as a
// Response, not an error; only transport failures yield ErrUpstream.
func (p *Proxy) Complete(ctx context.Context, in Request) (Response, error) {
	if len(in.Messages) == 0 {
		return Response{}, ErrInvalidMessages
	}
	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = p.defaultModel
	}
	temp := defaultTemperature
	if in.Temperature != nil {
		temp = *in.Temperature
	}

	payload, err := json.Marshal(upstreamRequest{Model: model, Messages: in.Messages, Temperature: temp})
	if err != nil {
		return Response{}, err
	}

	endpoint := p.BaseURL(model) + completionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		telemetry.Error("chat.upstream_failed", map[string]any{"model": model, "error": err})
		return Response{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}

	telemetry.Info("chat.completion", map[string]any{
		"model":       model,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"messages":    len(in.Messages),
	})
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	return Response{Status: resp.StatusCode, ContentType: contentType, Body: body}, nil
}
