package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shhady/leadform/backend/agent"
	"github.com/shhady/leadform/backend/config"
	"github.com/shhady/leadform/backend/form"
	"github.com/shhady/leadform/backend/handler"
	"github.com/shhady/leadform/backend/middleware"
	"github.com/shhady/leadform/backend/pkg/logger"
	"github.com/shhady/leadform/backend/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	if cfg.Session.Secret == "" {
		slog.Error("session secret is not configured")
		os.Exit(1)
	}

	ctx := context.Background()

	// Initialize services
	store, err := service.NewSessionStore(ctx, &cfg.Session)
	if err != nil {
		slog.Error("failed to initialize session store", "store", cfg.Session.Store, "error", err)
		os.Exit(1)
	}

	host, err := service.NewMediaHost(ctx, &cfg.Media)
	if err != nil {
		slog.Error("failed to initialize media host", "provider", cfg.Media.Provider, "error", err)
		os.Exit(1)
	}

	// Without mail credentials the server still starts; submissions fail
	// until they are configured.
	var mailer service.Mailer
	if cfg.Mail.Configured() {
		mailer, err = service.NewMailer(&cfg.Mail)
		if err != nil {
			slog.Error("failed to initialize mailer", "provider", cfg.Mail.Provider, "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("mail provider not configured", "provider", cfg.Mail.Provider)
	}

	var board *service.BoardClient
	if cfg.Board.Enabled {
		board = service.NewBoardClient(&cfg.Board)
	}
	pipeline := service.NewPipeline(mailer, board, cfg.Mail.From, cfg.Mail.To)

	var dispatcher service.Dispatcher
	if cfg.Submit.Endpoint != "" {
		dispatcher = service.NewHTTPDispatcher(cfg.Submit.Endpoint, cfg.Submit.Timeout)
		slog.Info("submissions dispatched to endpoint", "endpoint", cfg.Submit.Endpoint)
	} else {
		dispatcher = service.NewPipelineDispatcher(pipeline)
	}

	coordinator := service.NewUploadCoordinator(store, host, cfg.Upload.MaxBytes, cfg.Upload.Timeout)
	assembler := service.NewAssembler(store, form.NewValidator(), dispatcher, cfg.Session.ResetDelay)
	agents := agent.NewRegistry()

	// Initialize handlers
	sessionHandler := handler.NewSessionHandler(store, coordinator, assembler, agents, cfg.Session.Secret, cfg.Session.TTL, cfg.Upload.MaxBytes)
	mediaHandler := handler.NewMediaHandler(host)
	emailHandler := handler.NewEmailHandler(pipeline, cfg.Upload.MaxBytes)
	pageHandler := handler.NewPageHandler(agents, cfg.Server.StaticDir)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger("/health", "/api/sessions/:id")) // polled
	router.Use(corsMiddleware())
	router.Use(cacheMiddleware())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute))

	slog.Info("serving static files", "directory", cfg.Server.StaticDir)
	router.Static("/static", cfg.Server.StaticDir)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Pages
	router.GET("/", pageHandler.Index)
	gated := router.Group("/:agent", middleware.AgentGate(agents))
	{
		gated.GET("", pageHandler.Index)
		gated.GET("/form", pageHandler.Index)
	}

	// Public routes
	api := router.Group("/api")
	{
		api.GET("/agents/:agent", pageHandler.Agent)
		api.POST("/sessions", sessionHandler.Create)
		api.POST("/delete-file", mediaHandler.DeleteFile)
		api.POST("/send-email", emailHandler.Send)
	}

	// Session routes
	sessions := api.Group("/sessions/:id")
	sessions.Use(middleware.SessionAuth(cfg.Session.Secret))
	{
		sessions.GET("", sessionHandler.Get)
		sessions.DELETE("", sessionHandler.Discard)
		sessions.PATCH("/fields", sessionHandler.UpdateField)
		sessions.POST("/files/:slot", sessionHandler.UploadFile)
		sessions.DELETE("/files/:slot", sessionHandler.DeleteFile)
		sessions.POST("/submit", sessionHandler.Submit)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// let running uploads record their result
	coordinator.Wait()

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// cacheMiddleware keeps API responses out of caches and lets static assets
// be cached for an hour.
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if strings.HasPrefix(path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
			return
		}

		if strings.HasPrefix(path, "/static/") {
			c.Header("Cache-Control", "public, max-age=3600, must-revalidate")
		}

		c.Next()
	}
}
