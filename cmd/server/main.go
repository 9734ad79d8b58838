package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/connectsphere/connectsphere/internal/config"
	"github.com/connectsphere/connectsphere/internal/database"
	"github.com/connectsphere/connectsphere/internal/handlers"
	"github.com/connectsphere/connectsphere/internal/logging"
	"github.com/connectsphere/connectsphere/internal/middleware"
	"github.com/connectsphere/connectsphere/internal/realtime"
	"github.com/connectsphere/connectsphere/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// Initialize logger
	logger := logging.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration is incomplete. Set the listed keys via environment variables or config.json.", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	if level := logging.ParseLevel(cfg.Log.Level); cfg.Log.Level != "" {
		logger.SetLevel(level)
		logging.SetDefaultLevel(level)
	}

	logger.Info("Starting ConnectSphere server...")

	// Connect to PostgreSQL
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	// Connect to Redis
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	// Event hub: services publish through it, sockets subscribe to it.
	hub := realtime.NewHub(redisDB.Client, logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go func() {
		if err := hub.Run(hubCtx); err != nil && err != context.Canceled {
			logger.Error("Event hub stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	// Initialize services
	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	userService := services.NewUserService(dbAdapter)
	authService := services.NewAuthService(dbAdapter, redisAdapter)
	emailService := services.NewEmailService(&cfg.Email)
	friendService := services.NewFriendService(dbAdapter, hub)
	chatService := services.NewChatService(dbAdapter, hub)
	presenceService := services.NewPresenceService(dbAdapter, hub)
	tracker := realtime.NewTracker(presenceService)

	// Object storage for attachments; optional
	var mediaStore services.MediaStoreInterface
	var storageHealth handlers.HealthChecker
	if cfg.Storage.Enabled() {
		store, err := services.NewMediaStore(cfg.Storage)
		if err != nil {
			return fmt.Errorf("connecting to object storage: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = store.EnsureBucket(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("preparing storage bucket: %w", err)
		}
		mediaStore = store
		storageHealth = store
		logger.Info("Object storage ready", map[string]interface{}{
			"endpoint": cfg.Storage.Endpoint,
			"bucket":   cfg.Storage.Bucket,
		})
	} else {
		logger.Info("Object storage not configured; media uploads disabled")
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redisDB, storageHealth)
	authHandler := handlers.NewAuthHandler(userService, authService, emailService, presenceService, cfg.Server.Secure)
	userHandler := handlers.NewUserHandler(userService)
	friendHandler := handlers.NewFriendHandler(friendService)
	chatHandler := handlers.NewChatHandler(chatService, friendService)
	mediaHandler := handlers.NewMediaHandler(mediaStore)
	wsHandler := handlers.NewWSHandler(hub, tracker, logger)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)
	requestLogger := middleware.NewRequestLogger(logger)
	authRateLimiter := middleware.NewAuthRateLimiter(redisDB.Client)
	apiRateLimiter := middleware.NewAPIRateLimiter(redisDB.Client)
	uploadRateLimiter := middleware.NewUploadRateLimiter(redisDB.Client)

	requireAuth := authMiddleware.RequireAuth

	// Set up router
	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /api/health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)

	// Auth endpoints
	mux.Handle("POST /api/auth/register", authRateLimiter.Limit(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", authRateLimiter.Limit(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/auth/logout", http.HandlerFunc(authHandler.Logout))
	mux.Handle("POST /api/auth/password", requireAuth(http.HandlerFunc(authHandler.ChangePassword)))

	// Account endpoints
	mux.Handle("GET /api/me", requireAuth(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PATCH /api/me", requireAuth(http.HandlerFunc(userHandler.UpdateProfile)))
	mux.Handle("DELETE /api/me", requireAuth(http.HandlerFunc(authHandler.DeleteAccount)))

	// User endpoints
	mux.Handle("GET /api/users/lookup", requireAuth(http.HandlerFunc(userHandler.Lookup)))
	mux.Handle("GET /api/users/{id}", requireAuth(http.HandlerFunc(userHandler.GetProfile)))

	// Friend endpoints
	mux.Handle("GET /api/friends", requireAuth(http.HandlerFunc(friendHandler.ListFriends)))
	mux.Handle("GET /api/friends/requests", requireAuth(http.HandlerFunc(friendHandler.ListPendingRequests)))
	mux.Handle("POST /api/friends/requests", requireAuth(http.HandlerFunc(friendHandler.SendRequest)))
	mux.Handle("POST /api/friends/requests/{senderID}/accept", requireAuth(http.HandlerFunc(friendHandler.AcceptRequest)))
	mux.Handle("POST /api/friends/requests/{senderID}/reject", requireAuth(http.HandlerFunc(friendHandler.RejectRequest)))

	// Conversation endpoints
	mux.Handle("GET /api/chats", requireAuth(http.HandlerFunc(chatHandler.ListSummaries)))
	mux.Handle("GET /api/chats/{userID}/messages", requireAuth(http.HandlerFunc(chatHandler.ListMessages)))
	mux.Handle("POST /api/chats/{userID}/messages", requireAuth(http.HandlerFunc(chatHandler.SendMessage)))
	mux.Handle("POST /api/chats/{userID}/seen", requireAuth(http.HandlerFunc(chatHandler.MarkSeen)))

	// Media upload
	mux.Handle("POST /api/media", requireAuth(uploadRateLimiter.Limit(http.HandlerFunc(mediaHandler.Upload))))

	// Realtime socket
	mux.Handle("GET /api/ws", requireAuth(http.HandlerFunc(wsHandler.Serve)))

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = apiRateLimiter.Limit(handler)
	handler = requestLogger.Apply(handler)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WebSocket connections are long-lived; WriteTimeout would kill them.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		stopHub()
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}
