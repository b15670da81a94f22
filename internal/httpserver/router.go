package httpserver

import (
	"net/http"

	"mailintel/internal/handler"
	"mailintel/pkg/metrics"
	pkgotel "mailintel/pkg/otel"
	pkgredis "mailintel/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Router struct {
	Engine *gin.Engine
}

// NewRouter wires all routes. When jwtSecret is empty the /api group is
// open; rdb may be nil when no Redis is configured.
func NewRouter(
	analysisHandler *handler.AnalysisHandler,
	mailHandler *handler.MailHandler,
	jwtSecret string,
	rdb *redis.Client,
	log *zap.Logger,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), pkgotel.GinMiddleware(), AccessLogMiddleware(log))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		if rdb == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready", "redis": "disabled"})
			return
		}

		if err := pkgredis.Ping(c.Request.Context(), rdb); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis_not_ready", "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	if jwtSecret != "" {
		api.Use(AuthMiddleware(jwtSecret))
	}
	{
		// 分析
		api.POST("/analyze-sentiment", analysisHandler.AnalyzeSentiment)
		api.POST("/sentiment", analysisHandler.Sentiment)
		api.POST("/summarize", analysisHandler.Summarize)
		api.POST("/tasks", analysisHandler.Tasks)
		api.POST("/generate", analysisHandler.Generate)

		// 邮箱
		api.GET("/senders", mailHandler.Senders)
		api.POST("/messages", mailHandler.Messages)
		api.POST("/threads/subjects", mailHandler.ThreadSubjects)
		api.POST("/threads/view", mailHandler.ThreadView)
		api.POST("/send", mailHandler.Send)
	}

	return &Router{Engine: r}
}
