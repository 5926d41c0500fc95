package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avatar-chat-backend/internal/ai"
	"avatar-chat-backend/internal/config"
	"avatar-chat-backend/internal/logger"
	"avatar-chat-backend/internal/telemetry"
	"avatar-chat-backend/middleware"
	"avatar-chat-backend/routes"
	"avatar-chat-backend/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Tracing is optional; the app runs fine without a collector
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("avatar-chat-backend", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("failed to initialize tracing, continuing without it", "error", err)
		} else {
			defer shutdown()
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Knowledge store: LRU cache over one JSON file per document
	store, err := services.NewKnowledgeStore(cfg.KnowledgeDir, cfg.KnowledgeCacheSize)
	if err != nil {
		log.Fatal("Failed to initialize knowledge store:", err)
	}

	// Provider-backed AI clients when a key is configured, degraded
	// placeholders otherwise
	var embedder ai.Embedder
	var generator ai.Generator
	degraded := !cfg.HasGemini()
	if degraded {
		embedder = ai.NewDegradedEmbedder(cfg.VectorDimensions)
		generator = nil
	} else {
		geminiEmbedder, err := ai.NewGeminiEmbedder(cfg)
		if err != nil {
			log.Fatal("Failed to create embedder:", err)
		}
		defer geminiEmbedder.Close()
		embedder = geminiEmbedder

		geminiGenerator, err := ai.NewGeminiGenerator(cfg)
		if err != nil {
			log.Fatal("Failed to create generator:", err)
		}
		defer geminiGenerator.Close()
		generator = geminiGenerator
	}
	if generator == nil {
		generator = ai.NewEchoGenerator()
	}

	extractor := services.NewTextExtractor()
	chunker := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap)
	avatar := services.NewAvatarClient(cfg)
	rag := services.NewRAGService(cfg, extractor, chunker, embedder, generator, store, avatar, metrics, degraded)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))

	// Rate limiting fails open, so a missing Redis only disables it
	if rdb, err := config.NewRedisClient(cfg); err != nil {
		logger.Warn("redis unavailable, rate limiting disabled", "error", err)
	} else {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.RegisterKnowledgeRoutes(router, cfg, rag)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "degraded_embeddings", degraded)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
