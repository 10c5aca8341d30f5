// Package main runs the interview practice platform HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/prepview/backend/config"
	"github.com/prepview/backend/internal/ai"
	"github.com/prepview/backend/internal/audio"
	"github.com/prepview/backend/internal/auth"
	"github.com/prepview/backend/internal/middleware"
	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/internal/realtime"
	"github.com/prepview/backend/internal/reports"
	"github.com/prepview/backend/internal/scoring"
	"github.com/prepview/backend/internal/session"
	"github.com/prepview/backend/internal/worker"
	"github.com/prepview/backend/pkg/database"
	"github.com/prepview/backend/pkg/queue"
	"github.com/prepview/backend/pkg/redis"
	"github.com/prepview/backend/pkg/response"
	"github.com/prepview/backend/pkg/storage"
	"github.com/prepview/backend/pkg/summarystore"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AnswersBucket:        cfg.AWS.AnswersBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	aiClient := ai.NewClient(ai.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Timeout: time.Duration(cfg.AI.TimeoutSec) * time.Second,
	}, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Session engine
	scorer := scoring.NewScorer(nil)
	manager := session.NewManager(aiClient, scorer, logger)
	sessionRepo := session.NewRepository(pool)
	summaries := summarystore.New(rdb.Client, summarystore.DefaultTTL, logger)
	sessionHandler := session.NewHandler(sessionRepo, manager, summaries, hub, logger)

	// Facial frames arriving over WebSocket feed the session's aggregator.
	hub.SetFacialFrameHandler(func(sessionID uuid.UUID, sample models.FacialSample) (models.RunningMetrics, bool) {
		if !manager.IngestFacial(sessionID, sample) {
			return models.RunningMetrics{}, false
		}
		engine, ok := manager.Get(sessionID)
		if !ok {
			return models.RunningMetrics{}, false
		}
		return engine.Telemetry().RunningMetrics(), true
	})

	// Voice analysis results come back over the Redis bridge; the instance
	// holding the live engine ingests them.
	hub.SetEventHook(func(sessionID uuid.UUID, event string, payload []byte) {
		if event != "voice_result" {
			return
		}
		var result worker.VoiceResult
		if err := json.Unmarshal(payload, &result); err != nil {
			logger.Warn("invalid voice_result payload", zap.Error(err))
			return
		}
		manager.IngestVoice(sessionID, models.VoiceSample{
			At:      result.At,
			Clarity: result.Clarity,
			Pace:    result.Pace,
			Energy:  result.Energy,
		})
	})

	// Answer audio upload + voice analysis jobs
	jobQueue := queue.NewQueue(rdb.Client, logger)
	audioHandler := audio.NewHandler(sessionRepo, s3Client, jobQueue, logger)
	voiceProcessor := worker.NewVoiceProcessor(s3Client, jobQueue, aiClient, redisPubSub, logger)

	// Reports
	reportRepo := reports.NewRepository(pool)
	reportHandler := reports.NewHandler(reportRepo, sessionRepo, summaries, aiClient, logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Interview sessions
		api.POST("/sessions", sessionHandler.Create)
		api.GET("/sessions", sessionHandler.List)
		api.GET("/sessions/:id", sessionHandler.Get)
		api.GET("/sessions/:id/metrics", sessionHandler.Metrics)
		api.POST("/sessions/:id/start", sessionHandler.Start)
		api.POST("/sessions/:id/recording/start", sessionHandler.StartRecording)
		api.POST("/sessions/:id/recording/stop", sessionHandler.StopRecording)
		api.POST("/sessions/:id/skip", sessionHandler.Skip)
		api.POST("/sessions/:id/end", sessionHandler.End)

		// Answer audio (voice analysis)
		api.POST("/sessions/:id/questions/:idx/audio", audioHandler.UploadAnswer)
		api.GET("/sessions/:id/questions/:idx/audio", audioHandler.GetAnswerAudio)

		// Reports
		api.POST("/sessions/:id/report", reportHandler.Generate)
		api.GET("/sessions/:id/report", reportHandler.GetBySession)
		api.GET("/reports/:id", reportHandler.Get)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (voice analysis of answer audio)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		go voiceProcessor.Run(workerCtx)
		logger.Info("voice analysis worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
