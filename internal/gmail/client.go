// Package gmail adapts the Gmail REST API to the pipeline's message model.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mailintel/pkg/logger"
	"mailintel/pkg/metrics"
	"mailintel/pkg/otel"
	"mailintel/pkg/util"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

var (
	// ErrUnauthorized 凭证缺失或被拒绝
	ErrUnauthorized = errors.New("gmail credential missing or rejected")
	// ErrNoThreads 请求中没有线程
	ErrNoThreads = errors.New("no thread ids given")
	// ErrAllThreadsFailed 所有线程都拉取失败
	ErrAllThreadsFailed = errors.New("every thread fetch failed")
)

// Config Gmail 适配器配置
type Config struct {
	// Endpoint 覆盖 API 根地址，空值使用 Google 默认地址
	Endpoint    string        `yaml:"endpoint"`
	ThreadLimit int           `yaml:"thread_limit"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.ThreadLimit <= 0 {
		c.ThreadLimit = 20
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	return c
}

// Client 每次调用用调用方的 bearer 凭证构建 Gmail service
type Client struct {
	cfg    Config
	base   *http.Client
	logger *zap.Logger
}

// NewClient creates a client. base may be nil to use http.DefaultClient.
func NewClient(cfg Config, base *http.Client, log *zap.Logger) *Client {
	if base == nil {
		base = http.DefaultClient
	}
	return &Client{
		cfg:    cfg.withDefaults(),
		base:   base,
		logger: logger.OrNop(log),
	}
}

// DefaultThreadLimit 返回配置的默认线程数
func (c *Client) DefaultThreadLimit() int {
	return c.cfg.ThreadLimit
}

func (c *Client) service(ctx context.Context, cred string) (*gmailv1.Service, error) {
	if cred == "" {
		return nil, ErrUnauthorized
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred, TokenType: "Bearer"})
	hc := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.base), ts)

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.Endpoint))
	}
	svc, err := gmailv1.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

// call 执行一次带超时、指标和 span 的 Gmail 调用
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	ctx, span := otel.StartClientSpan(ctx, "gmail", op)
	defer span.End()

	start := time.Now()
	err := mapError(fn(ctx))
	status := "success"
	if err != nil {
		_, status = util.ClassifyError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RecordProviderCallLatency("gmail", op, status, time.Since(start))
	return err
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && (gErr.Code == http.StatusUnauthorized || gErr.Code == http.StatusForbidden) {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return err
}
