package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cleaning-cards/config"
	"cleaning-cards/handlers"
	"cleaning-cards/llm"
	"cleaning-cards/metrics"
	"cleaning-cards/middleware"
	"cleaning-cards/openrouter"
	"cleaning-cards/service"
	"cleaning-cards/stubllm"
)

func main() {
	cfg := config.Load()

	var client llm.Client
	if cfg.LLMProvider == "stub" {
		client = stubllm.NewClient()
	} else {
		if cfg.OpenRouterAPIKey == "" {
			log.Fatal("OPENROUTER_API_KEY environment variable is required")
		}
		client = openrouter.NewClient(cfg)
	}

	metrics.Register()

	analyzer := service.New(client)
	h := handlers.NewHandlers(analyzer)

	router := gin.Default()

	// CORS for the mobile webview / dev clients.
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	router.GET("/", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	{
		api.POST("/analysis/room-photo", h.AnalyzeRoomPhoto)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("cleaning-cards service starting on port %s (model=%s, provider=%s)",
			cfg.Port, cfg.OpenRouterModel, client.SourceName())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Info("Server exited")
}
