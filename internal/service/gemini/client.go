package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"emailwriter/pkg/circuitbreaker"
	"emailwriter/pkg/config"
	"emailwriter/pkg/metrics"
	"emailwriter/pkg/otel"
	"emailwriter/pkg/util"
)

const maxResponseBytes = 10 << 20

var (
	ErrNoCandidates = errors.New("response has no candidates")
	ErrNoParts      = errors.New("first candidate has no content parts")
)

// Failure kinds specific to the generateContent response.
const (
	KindEmptyCandidates = "empty_candidates"
	KindEmptyParts      = "empty_parts"
	KindAPIError        = "api_error"
)

// ResponseError 响应已返回但无法取出文本
type ResponseError struct {
	Kind       string
	StatusCode int
	Err        error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("gemini response (status %d): %v", e.StatusCode, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

func (e *ResponseError) FailureKind() string { return e.Kind }

// Client 调用 Gemini generateContent 接口
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient httpClient 由调用方创建并在进程内共享
func NewClient(cfg config.GeminiConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	cbConfig := circuitbreaker.Config{
		Name:                "gemini",
		FailureThreshold:    cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold:    cfg.CircuitBreaker.SuccessThreshold,
		Timeout:             cfg.CircuitBreaker.OpenTimeout,
		HalfOpenMaxRequests: cfg.CircuitBreaker.HalfOpenMaxRequests,
		IsIgnored:           util.IsCallerCanceled,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			metrics.SetCircuitBreakerState(name, int(to))
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		cb:         circuitbreaker.NewCircuitBreaker(cbConfig),
		logger:     logger,
	}
}

// BreakerState 供 readiness 检查使用
func (c *Client) BreakerState() circuitbreaker.State {
	return c.cb.State()
}

// GenerateContent 发送单轮 prompt，返回 candidates[0].content.parts[0].text
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.StartSpan(ctx, "gemini.generateContent", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var (
		text    string
		callErr error
	)

	// 只有网络错误和 5xx 计入熔断，响应内容问题不算下游故障
	err := c.cb.Execute(func() error {
		var status int
		text, status, callErr = c.call(ctx, prompt)
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if callErr != nil && (status == 0 || status >= http.StatusInternalServerError) {
			return callErr
		}
		return nil
	})
	if err == nil {
		err = callErr
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

func (c *Client) call(ctx context.Context, prompt string) (string, int, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return "", 0, err
	}

	body, err := json.Marshal(GenerateContentRequest{
		Contents: []Content{{Parts: []Part{{Text: prompt}}}},
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordGeminiCallLatency("error", time.Since(start))
		return "", 0, fmt.Errorf("failed to call gemini: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	latency := time.Since(start)
	if err != nil {
		metrics.RecordGeminiCallLatency("error", latency)
		return "", resp.StatusCode, fmt.Errorf("failed to read gemini response: %w", err)
	}

	// 与状态码无关，只要能取出文本就算成功
	text, err := extractText(resp.StatusCode, raw)
	status := "success"
	if err != nil {
		status = strconv.Itoa(resp.StatusCode)
		if resp.StatusCode < 300 {
			status = "invalid_response"
		}
	}
	metrics.RecordGeminiCallLatency(status, latency)

	return text, resp.StatusCode, err
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid gemini api url: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func extractText(statusCode int, raw []byte) (string, error) {
	decodeErr := func(err error) error {
		return &ResponseError{Kind: util.KindJSONDecodeError, StatusCode: statusCode, Err: err}
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", decodeErr(err)
	}

	if len(parsed.Candidates) == 0 {
		if apiErr := apiErrorText(parsed.Error); apiErr != "" {
			return "", &ResponseError{Kind: KindAPIError, StatusCode: statusCode, Err: errors.New(apiErr)}
		}
		return "", &ResponseError{Kind: KindEmptyCandidates, StatusCode: statusCode, Err: ErrNoCandidates}
	}

	var candidate responseCandidate
	if err := json.Unmarshal(parsed.Candidates[0], &candidate); err != nil {
		return "", decodeErr(err)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &ResponseError{Kind: KindEmptyParts, StatusCode: statusCode, Err: ErrNoParts}
	}

	var part responsePart
	if err := json.Unmarshal(candidate.Content.Parts[0], &part); err != nil {
		return "", decodeErr(err)
	}
	return partText(part.Text), nil
}

// apiErrorText 尽力解析 error 字段，解析不了就原样返回
func apiErrorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var apiErr APIError
	if err := json.Unmarshal(raw, &apiErr); err != nil || (apiErr.Status == "" && apiErr.Message == "") {
		return string(raw)
	}
	return fmt.Sprintf("%s: %s", apiErr.Status, apiErr.Message)
}

// partText 缺失的 text 为空串；数字、布尔、null 按字面量转成文本，对象和数组为空串
func partText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	case '{', '[':
		return ""
	default:
		return string(raw)
	}
}
