// Package analysis builds prompts for each analysis kind, calls the text
// generation service once per call and turns the reply into typed results.
package analysis

import (
	"context"
	"errors"
	"time"

	"mailintel/internal/genai"
	"mailintel/internal/noise"
	"mailintel/pkg/logger"
	"mailintel/pkg/mq"

	"go.uber.org/zap"
)

var (
	// ErrNoMessages 没有可分析的消息
	ErrNoMessages = errors.New("no messages to analyze")
	// ErrNoInstruction 回复指令为空
	ErrNoInstruction = errors.New("instruction is required")
	// ErrProvider 文本生成服务调用失败（传输错误、非 2xx、超时、熔断）
	ErrProvider = errors.New("generative provider failed")
	// ErrTaskParse 模型输出不是 JSON 数组
	ErrTaskParse = errors.New("failed to parse tasks JSON")
)

// Config 分析配置
type Config struct {
	SummaryCap           int    `yaml:"summary_cap"`
	SentimentConcurrency int    `yaml:"sentiment_concurrency"`
	// TaskLanguage 任务描述使用的语言，空值表示跟随邮件语言
	TaskLanguage string `yaml:"task_language"`
}

func (c Config) withDefaults() Config {
	if c.SummaryCap <= 0 {
		c.SummaryCap = 100
	}
	if c.SentimentConcurrency <= 0 {
		c.SentimentConcurrency = 4
	}
	return c
}

// Orchestrator 分析编排器，无状态，可并发使用
type Orchestrator struct {
	gen       genai.Generator
	filter    *noise.Filter
	publisher mq.EventPublisher
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an orchestrator. filter and publisher may be nil.
func New(gen genai.Generator, filter *noise.Filter, publisher mq.EventPublisher, cfg Config, log *zap.Logger) *Orchestrator {
	if filter == nil {
		filter = noise.NewDefaultFilter()
	}
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	return &Orchestrator{
		gen:       gen,
		filter:    filter,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		logger:    logger.OrNop(log),
		now:       time.Now,
	}
}

func (o *Orchestrator) log(ctx context.Context) *zap.Logger {
	return logger.WithTrace(ctx, o.logger)
}
