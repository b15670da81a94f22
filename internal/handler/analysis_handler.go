// Package handler exposes the analysis and mailbox operations over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mailintel/internal/genai"
	"mailintel/internal/inflight"
	"mailintel/internal/model"
	"mailintel/internal/service/analysis"
	"mailintel/pkg/logger"
	"mailintel/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestKeyHeader 客户端用于标识“同一操作”的请求键，新请求会取代旧请求
const RequestKeyHeader = "X-Request-Key"

type AnalysisHandler struct {
	orch   *analysis.Orchestrator
	guard  *inflight.Guard
	logger *zap.Logger
}

// NewAnalysisHandler guard 可以为 nil，此时不做取代检测
func NewAnalysisHandler(orch *analysis.Orchestrator, guard *inflight.Guard, log *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		orch:   orch,
		guard:  guard,
		logger: logger.OrNop(log),
	}
}

type messagesRequest struct {
	Messages *[]model.Message `json:"messages"`
}

type generateRequest struct {
	Instruction string          `json:"instruction"`
	ThreadID    string          `json:"threadId"`
	Messages    []model.Message `json:"messages"`
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// AnalyzeSentiment handles POST /api/analyze-sentiment.
// 永远返回 200 和纯文本数字，失败时为中性分 50
func (h *AnalysisHandler) AnalyzeSentiment(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		c.String(http.StatusOK, strconv.Itoa(analysis.NeutralScore))
		return
	}

	score, _ := h.orch.ScorePrompt(c.Request.Context(), req.Prompt)
	c.String(http.StatusOK, strconv.Itoa(score))
}

// Sentiment handles POST /api/sentiment
func (h *AnalysisHandler) Sentiment(c *gin.Context) {
	var req messagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON input."})
		return
	}
	if req.Messages == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No messages provided."})
		return
	}

	ticket, tracked := h.begin(c, "sentiment", "")
	results := h.orch.ScoreSentiment(c.Request.Context(), *req.Messages)
	if h.superseded(c, ticket, tracked) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Summarize handles POST /api/summarize
func (h *AnalysisHandler) Summarize(c *gin.Context) {
	var req messagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"summary": "Invalid JSON input."})
		return
	}
	if req.Messages == nil {
		c.JSON(http.StatusBadRequest, gin.H{"summary": "No messages to summarize."})
		return
	}

	ticket, tracked := h.begin(c, "summarize", "")
	res, err := h.orch.Summarize(c.Request.Context(), *req.Messages)
	if h.superseded(c, ticket, tracked) {
		return
	}

	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, genai.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"summary": "Gemini API key is missing."})
	case errors.Is(err, analysis.ErrNoMessages):
		c.JSON(http.StatusBadRequest, gin.H{"summary": "Message list is empty."})
	default:
		h.logger.Error("Summarize failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, res)
	}
}

// Tasks handles POST /api/tasks
func (h *AnalysisHandler) Tasks(c *gin.Context) {
	var req messagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON input."})
		return
	}
	if req.Messages == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No messages provided."})
		return
	}

	ticket, tracked := h.begin(c, "tasks", "")
	tasks, err := h.orch.ExtractTasks(c.Request.Context(), *req.Messages)
	if h.superseded(c, ticket, tracked) {
		return
	}

	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"tasks": tasks})
	case errors.Is(err, genai.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Gemini API key is missing."})
	case errors.Is(err, analysis.ErrProvider):
		h.logger.Error("Task extraction failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Gemini API error."})
	case errors.Is(err, analysis.ErrTaskParse):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse tasks JSON."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Task extraction failed."})
	}
}

// Generate handles POST /api/generate
func (h *AnalysisHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON input."})
		return
	}
	if strings.TrimSpace(req.Instruction) == "" || strings.TrimSpace(req.ThreadID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing instruction or threadId."})
		return
	}

	// 同一线程的回复生成，新请求取代旧请求
	ticket, tracked := h.begin(c, "generate", req.ThreadID)
	text, err := h.orch.ComposeReply(c.Request.Context(), req.Instruction, req.Messages)
	if h.superseded(c, ticket, tracked) {
		return
	}

	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"response": text})
	case errors.Is(err, genai.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Gemini API key is missing."})
	case errors.Is(err, analysis.ErrNoInstruction):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing instruction or threadId."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate a reply."})
	}
}

// begin 登记一次请求。请求键优先取请求头，其次取 fallbackKey
func (h *AnalysisHandler) begin(c *gin.Context, kind, fallbackKey string) (inflight.Ticket, bool) {
	key := strings.TrimSpace(c.GetHeader(RequestKeyHeader))
	if key == "" {
		key = fallbackKey
	}
	return h.guard.Begin(c.Request.Context(), kind, key)
}

// superseded 若已有更新的同类请求则回 409，丢弃本次结果
func (h *AnalysisHandler) superseded(c *gin.Context, t inflight.Ticket, tracked bool) bool {
	if !tracked || !h.guard.Superseded(c.Request.Context(), t) {
		return false
	}

	metrics.IncrementSuperseded(c.FullPath())
	h.logger.Info("Discarding superseded result",
		zap.String("kind", t.Kind),
		zap.String("key", t.Key),
		zap.Int64("seq", t.Seq),
	)
	c.JSON(http.StatusConflict, gin.H{"error": "superseded"})
	return true
}
