package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"anoa.com/tunehub/internal/config"
	"anoa.com/tunehub/internal/middleware"

	"anoa.com/tunehub/internal/modules/notification/deadletter"
	notiHttp "anoa.com/tunehub/internal/modules/notification/delivery/http"
	"anoa.com/tunehub/internal/modules/notification/queue"
	"anoa.com/tunehub/internal/modules/notification/realtime"
	notifRepo "anoa.com/tunehub/internal/modules/notification/repository"
	notifService "anoa.com/tunehub/internal/modules/notification/service"

	prefRepo "anoa.com/tunehub/internal/modules/preference/repository"
	prefService "anoa.com/tunehub/internal/modules/preference/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	engine    *gin.Engine
	processor *notifService.Processor
	publisher notifService.Publisher
	registry  *realtime.Registry
	log       *slog.Logger
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, log *slog.Logger) *Server {
	// Preference Module
	preferenceRepository := prefRepo.NewPreferenceRepository(db)
	preferenceClient := prefService.NewClient(preferenceRepository, redisClient, cfg.Notification.PreferenceCacheTTL, log)

	// Notification Module
	notificationRepository := notifRepo.NewNotificationRepository(db)
	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, log)

	var deadLetters notifService.DeadLetterSink = deadletter.NewLogSink(log)
	var deadLetterReader notiHttp.DeadLetterReader
	if redisClient != nil {
		redisSink := deadletter.NewRedisSink(redisClient, cfg.Notification.DeadLetterKey, log)
		deadLetters = redisSink
		deadLetterReader = redisSink
	}

	pending := queue.New()
	processor := notifService.NewProcessor(pending, notificationRepository, preferenceClient, dispatcher, deadLetters, cfg.Notification, log)
	ingestor := notifService.NewIngestor(pending, notificationRepository, preferenceClient, processor, cfg.Notification.BatchSize, log)
	historySvc := notifService.NewHistoryService(notificationRepository)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)

	notificationHandler := notiHttp.NewNotificationHandler(
		historySvc,
		ingestor,
		dispatcher,
		registry,
		authMiddleware,
		notiHttp.Options{
			AllowedOrigins: cfg.Origins(),
			SendBuffer:     cfg.Notification.WSSendBuffer,
			DeadLetters:    deadLetterReader,
		},
		log,
	)

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	setupCORS(router, cfg.Origins())

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health", "/metrics"},
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": registry.Count(),
			"queued":      pending.Len(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Authenticates itself before the upgrade.
	router.GET("/ws/notifications", notificationHandler.HandleWebSocket)

	internal := router.Group("/internal")
	internal.Use(middleware.RequireInternalKey(cfg.InternalAPIKey))
	{
		internal.POST("/notifications", notificationHandler.Publish)
		internal.GET("/notifications/dead-letters", notificationHandler.ListDeadLetters)
	}

	protected := router.Group("/api")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.DELETE("/notifications/read", notificationHandler.DeleteAllRead)
		protected.DELETE("/notifications/:id", notificationHandler.DeleteNotification)
	}

	return &Server{
		engine:    router,
		processor: processor,
		publisher: ingestor,
		registry:  registry,
		log:       log,
	}
}

// Publisher is the in-process entry point for producing services.
func (s *Server) Publisher() notifService.Publisher {
	return s.publisher
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start launches the background flush schedule.
func (s *Server) Start() error {
	return s.processor.Start()
}

// Shutdown flushes whatever is still queued, so connected clients get the
// last pushes, then drops the live sockets.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.processor.Stop(ctx)
	s.registry.CloseAll()
	return err
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts
// down the listener and the pipeline within the grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	if err := s.Start(); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	s.log.Info("shutting down")
	httpErr := httpServer.Shutdown(shutdownCtx)
	pipelineErr := s.Shutdown(shutdownCtx)
	return errors.Join(httpErr, pipelineErr)
}

func setupCORS(router *gin.Engine, origins []string) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.InternalKeyHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
