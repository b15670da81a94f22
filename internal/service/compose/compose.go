// Package compose validates, encodes and sends replies.
package compose

import (
	"context"
	"fmt"
	"time"

	contractmq "mailintel/contracts/mq"
	"mailintel/internal/mailcodec"
	"mailintel/pkg/logger"
	"mailintel/pkg/mq"
	"mailintel/pkg/trace"

	"go.uber.org/zap"
)

// Sender 由邮件适配器实现
type Sender interface {
	SendMessage(ctx context.Context, cred, raw, threadID string) (string, error)
}

// Reply 待发送的回复
type Reply struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	ThreadID string `json:"threadId,omitempty"`
}

// Composer 组装并发送回复，只尝试一次
type Composer struct {
	sender    Sender
	publisher mq.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func New(sender Sender, publisher mq.EventPublisher, log *zap.Logger) *Composer {
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	return &Composer{
		sender:    sender,
		publisher: publisher,
		logger:    logger.OrNop(log),
		now:       time.Now,
	}
}

// Send builds the raw payload and transmits it. Empty fields return
// mailcodec.ErrInvalidReply before any network call.
func (c *Composer) Send(ctx context.Context, cred string, r Reply) (string, error) {
	raw, err := mailcodec.BuildRawMessage(r.To, r.Subject, r.Body)
	if err != nil {
		return "", err
	}

	log := logger.WithTrace(ctx, c.logger)
	id, err := c.sender.SendMessage(ctx, cred, raw, r.ThreadID)
	if err != nil {
		log.Error("Failed to send reply", zap.String("thread_id", r.ThreadID), zap.Error(err))
		return "", fmt.Errorf("send reply: %w", err)
	}
	log.Info("Reply sent", zap.String("message_id", id), zap.String("thread_id", r.ThreadID))

	if err := c.publisher.Publish(ctx, contractmq.RoutingKeyReplySent, contractmq.ReplySentPayload{
		RequestID: trace.FromContext(ctx),
		MessageID: id,
		ThreadID:  r.ThreadID,
		To:        r.To,
		Subject:   r.Subject,
		SentAt:    c.now().UTC(),
	}); err != nil {
		log.Warn("Failed to publish reply.sent", zap.Error(err))
	}
	return id, nil
}
