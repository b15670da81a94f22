package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"mailintel/internal/aggregate"
	"mailintel/internal/gmail"
	"mailintel/internal/mailcodec"
	"mailintel/internal/model"
	"mailintel/internal/service/compose"
	"mailintel/pkg/logger"
	"mailintel/pkg/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MailService 邮箱读取接口，由 gmail.Client 实现
type MailService interface {
	ListSenders(ctx context.Context, cred string, limit int) ([]model.SenderGroup, error)
	FetchMessages(ctx context.Context, cred string, threadIDs []string) ([]model.Message, error)
	FetchThreadSubjects(ctx context.Context, cred string, threadIDs []string) (map[string]string, error)
}

type MailHandler struct {
	mail     MailService
	composer *compose.Composer
	limit    int
	logger   *zap.Logger
	now      func() time.Time
}

// NewMailHandler defaultLimit 是 /senders 未指定 limit 时的线程数
func NewMailHandler(mail MailService, composer *compose.Composer, defaultLimit int, log *zap.Logger) *MailHandler {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &MailHandler{
		mail:     mail,
		composer: composer,
		limit:    defaultLimit,
		logger:   logger.OrNop(log),
		now:      time.Now,
	}
}

type threadIDsRequest struct {
	ThreadIDs []string `json:"threadIds"`
}

// credential 取 Authorization: Bearer 中的邮箱访问令牌
func credential(c *gin.Context) (string, bool) {
	cred := util.ExtractToken(c.Request)
	if cred == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing mailbox credential"})
		return "", false
	}
	return cred, true
}

func (h *MailHandler) mailError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, gmail.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "mailbox credential rejected"})
	case errors.Is(err, gmail.ErrNoThreads):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no thread ids provided"})
	default:
		logger.WithTrace(c.Request.Context(), h.logger).Error("Mailbox call failed", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "mailbox provider error"})
	}
}

// Senders handles GET /api/senders?limit=N
func (h *MailHandler) Senders(c *gin.Context) {
	cred, ok := credential(c)
	if !ok {
		return
	}

	limit := h.limit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	senders, err := h.mail.ListSenders(c.Request.Context(), cred, limit)
	if err != nil {
		h.mailError(c, "senders", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"senders": senders})
}

// Messages handles POST /api/messages
func (h *MailHandler) Messages(c *gin.Context) {
	cred, ok := credential(c)
	if !ok {
		return
	}

	var req threadIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msgs, err := h.mail.FetchMessages(c.Request.Context(), cred, req.ThreadIDs)
	if err != nil {
		h.mailError(c, "messages", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// ThreadSubjects handles POST /api/threads/subjects
func (h *MailHandler) ThreadSubjects(c *gin.Context) {
	cred, ok := credential(c)
	if !ok {
		return
	}

	var req threadIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	subjects, err := h.mail.FetchThreadSubjects(c.Request.Context(), cred, req.ThreadIDs)
	if err != nil {
		h.mailError(c, "subjects", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

// ThreadView handles POST /api/threads/view.
// 拉取消息后按发件人和线程分组，再按日期标签分段；subjects 为各线程首封主题
func (h *MailHandler) ThreadView(c *gin.Context) {
	cred, ok := credential(c)
	if !ok {
		return
	}

	var req threadIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msgs, err := h.mail.FetchMessages(c.Request.Context(), cred, req.ThreadIDs)
	if err != nil {
		h.mailError(c, "view", err)
		return
	}

	groups := aggregate.GroupBySenderAndThread(msgs)
	c.JSON(http.StatusOK, gin.H{
		"sections": aggregate.BucketByDateLabel(groups, h.now()),
		"subjects": aggregate.ThreadSubjects(msgs),
	})
}

// Send handles POST /api/send
func (h *MailHandler) Send(c *gin.Context) {
	cred, ok := credential(c)
	if !ok {
		return
	}

	var req compose.Reply
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	id, err := h.composer.Send(c.Request.Context(), cred, req)
	if err != nil {
		if errors.Is(err, mailcodec.ErrInvalidReply) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to, subject and body are required"})
			return
		}
		h.mailError(c, "send", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"status": "sent",
	})
}
