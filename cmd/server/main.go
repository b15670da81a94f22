package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mailintel/config"
	"mailintel/internal/genai"
	"mailintel/internal/gmail"
	"mailintel/internal/handler"
	"mailintel/internal/httpserver"
	"mailintel/internal/inflight"
	"mailintel/internal/noise"
	"mailintel/internal/service/analysis"
	"mailintel/internal/service/compose"
	"mailintel/pkg/logger"
	"mailintel/pkg/mq"
	pkgotel "mailintel/pkg/otel"
	pkgredis "mailintel/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Server.Debug)
	defer log.Sync()

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. Init OpenTelemetry
	shutdownOtel, err := pkgotel.Init(pkgotel.Config{
		ServiceName:    cfg.Otel.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownOtel()

	// 3. Init Redis + request registry
	rdb, registry := initRegistry(cfg, log)
	guard := inflight.NewGuard(registry, log)

	// 4. Init MQ publisher，不可用时退化为不发布事件
	var publisher mq.EventPublisher = mq.NopPublisher{}
	if cfg.MQ.URL != "" {
		p, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Warn("MQ unavailable, events disabled", zap.Error(err))
		} else {
			defer p.Close()
			publisher = p
		}
	}

	// 5. Init clients and services
	filter, err := noise.NewFilter(cfg.Noise)
	if err != nil {
		log.Fatal("Invalid noise rule configuration", zap.Error(err))
	}
	log.Info("Noise filter ready", zap.Int("rules", len(filter.Rules())))

	gen := genai.NewClient(cfg.Genai, nil, log)
	if !gen.Configured() {
		log.Warn("Generative API key is not set; analysis endpoints will fail")
	}
	mail := gmail.NewClient(cfg.Gmail, nil, log)

	orch := analysis.New(gen, filter, publisher, cfg.Analysis, log)
	composer := compose.New(mail, publisher, log)

	// 6. Init handlers + router
	analysisHandler := handler.NewAnalysisHandler(orch, guard, log)
	mailHandler := handler.NewMailHandler(mail, composer, mail.DefaultThreadLimit(), log)
	router := httpserver.NewRouter(analysisHandler, mailHandler, cfg.JWT.Secret, rdb, log)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router.Engine,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info("Shutdown complete")
}

// initRegistry 优先使用 Redis，连不上时退回进程内 LRU
func initRegistry(cfg *config.Config, log *zap.Logger) (*redis.Client, inflight.Registry) {
	rdb := pkgredis.NewRedisClient(cfg.Redis)
	if rdb != nil {
		err := pkgredis.Ping(context.Background(), rdb)
		if err == nil {
			log.Info("Using Redis request registry", zap.String("addr", cfg.Redis.Addr))
			return rdb, inflight.NewRedisRegistry(rdb, cfg.Inflight, log)
		}
		log.Warn("Redis unavailable, using in-memory request registry", zap.Error(err))
		_ = rdb.Close()
	}

	mem, err := inflight.NewMemoryRegistry(cfg.Inflight)
	if err != nil {
		log.Fatal("Failed to create request registry", zap.Error(err))
	}
	return nil, mem
}
