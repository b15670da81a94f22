// Package genai calls a generateContent-style text generation endpoint.
package genai

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

	"mailintel/pkg/circuitbreaker"
	"mailintel/pkg/logger"
	"mailintel/pkg/metrics"
	"mailintel/pkg/otel"
	"mailintel/pkg/trace"
	"mailintel/pkg/util"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// Kind 调用的用途，决定使用的模型和指标标签
type Kind string

const (
	KindSummarize Kind = "summarize"
	KindSentiment Kind = "sentiment"
	KindTasks     Kind = "tasks"
	KindReply     Kind = "reply"
)

var (
	// ErrNotConfigured 未配置 API key
	ErrNotConfigured = errors.New("generative api key is missing")
	// ErrEmptyResponse 响应中没有 candidates[0].content.parts[0].text
	ErrEmptyResponse = errors.New("generative service returned no text")
)

// StatusError 非 2xx 响应
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generative service returned %d: %s", e.Code, e.Body)
}

// Generator 文本生成接口
type Generator interface {
	Generate(ctx context.Context, kind Kind, prompt string) (string, error)
	Configured() bool
}

// Config 文本生成服务配置
type Config struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// Model 默认模型；Models 按用途覆盖
	Model   string                `yaml:"model"`
	Models  map[string]string     `yaml:"models"`
	Timeout time.Duration         `yaml:"timeout"`
	Breaker circuitbreaker.Config `yaml:"breaker"`
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://generativelanguage.googleapis.com"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = "gemini-2.0-flash"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Breaker.FailureThreshold <= 0 {
		c.Breaker = circuitbreaker.Config{
			FailureThreshold:    5,
			SuccessThreshold:    2,
			Timeout:             30 * time.Second,
			HalfOpenMaxRequests: 2,
		}
	}
	return c
}

// Client Gemini REST 客户端，带熔断器和单次调用超时
type Client struct {
	cfg        Config
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(cfg Config, httpClient *http.Client, log *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	log = logger.OrNop(log)

	cb := circuitbreaker.NewCircuitBreaker(cfg.Breaker)
	// 调用方取消（用户离开页面）不是服务故障；自身超时是 DeadlineExceeded，仍计为失败
	cb.Ignore = func(err error) bool {
		return errors.Is(err, context.Canceled)
	}
	cb.OnStateChange = func(from, to circuitbreaker.State) {
		metrics.IncrementBreakerTransition("genai", to.String())
		log.Warn("Generative circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		cb:         cb,
		logger:     log,
	}
}

// Configured 是否有可用的 API key
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// ModelFor 返回某种用途使用的模型
func (c *Client) ModelFor(kind Kind) string {
	if m := c.cfg.Models[string(kind)]; m != "" {
		return m
	}
	return c.cfg.Model
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Text 返回第一个候选的第一段文本
func (r generateResponse) Text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

// Generate sends a single user turn and returns the first candidate's text.
// It makes one attempt bounded by the configured timeout. Transport errors,
// non-2xx statuses and an open breaker are all returned as errors.
func (c *Client) Generate(ctx context.Context, kind Kind, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	log := logger.WithTrace(ctx, c.logger)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	ctx, span := otel.StartClientSpan(ctx, "genai", string(kind))
	defer span.End()

	model := c.ModelFor(kind)
	var resp generateResponse
	start := time.Now()
	err := c.cb.Execute(func() error {
		var callErr error
		resp, callErr = c.do(ctx, model, prompt)
		return callErr
	})

	status := "success"
	if err != nil {
		_, status = util.ClassifyError(err)
		var se *StatusError
		if errors.As(err, &se) {
			status = fmt.Sprintf("%d", se.Code)
		}
		span.SetStatus(codes.Error, err.Error())
		log.Warn("Generative call failed",
			zap.String("kind", string(kind)),
			zap.String("model", model),
			zap.String("error_type", status),
			zap.Error(err),
		)
	}
	metrics.RecordProviderCallLatency("genai", string(kind), status, time.Since(start))
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *Client) do(ctx context.Context, model, prompt string) (generateResponse, error) {
	var out generateResponse

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return out, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName(), traceID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return out, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode generative response: %w", err)
	}
	return out, nil
}
