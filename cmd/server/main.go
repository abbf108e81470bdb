package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ryokrieger/CityConnect/internal/config"
	"github.com/ryokrieger/CityConnect/internal/database"
	"github.com/ryokrieger/CityConnect/internal/handlers"
	"github.com/ryokrieger/CityConnect/internal/logging"
	"github.com/ryokrieger/CityConnect/internal/middleware"
	"github.com/ryokrieger/CityConnect/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := logging.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)
	logging.SetDefaultLevel(level)

	logger.Info("Starting CityConnect server...", map[string]interface{}{
		"env": cfg.Server.Environment,
	})

	ctx := context.Background()

	// Connect to PostgreSQL
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(ctx, cfg.Database.DSN(), database.DefaultPoolOptions())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), "migrations")
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	if version, dirty, err := migrator.Version(); err == nil {
		logger.Info("Migrations completed", map[string]interface{}{"version": version, "dirty": dirty})
	}
	_ = migrator.Close()

	// Connect to Redis
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.NewRedisDB(ctx, database.RedisOptions{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	// Initialize services
	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	userService := services.NewUserService(dbAdapter)
	authService := services.NewAuthService(dbAdapter, redisAdapter, cfg.Session.TTL)
	providerAuthService := services.NewProviderAuthService(dbAdapter)
	locationService := services.NewLocationService(dbAdapter)
	interestService := services.NewInterestService(dbAdapter)
	friendService := services.NewFriendService(dbAdapter)
	matchService := services.NewMatchService(dbAdapter)
	ratingService := services.NewRatingService(dbAdapter)
	messageService := services.NewMessageService(dbAdapter)
	groupService := services.NewGroupService(dbAdapter)
	eventService := services.NewEventService(dbAdapter)
	adminService := services.NewAdminService(dbAdapter, authService)
	emailService := services.NewEmailService(&cfg.Email)
	notificationService := services.NewNotificationService(dbAdapter, emailService, cfg.Email.BaseURL)

	friendService.SetNotifier(notificationService)

	oauthProviders := map[services.Provider]services.OAuthProvider{}
	if cfg.OAuth.Google.Enabled {
		googleProvider, err := services.NewOIDCProvider(ctx, services.ProviderGoogle, cfg.OAuth.Google)
		if err != nil {
			return fmt.Errorf("initializing google oidc provider: %w", err)
		}
		oauthProviders[services.ProviderGoogle] = googleProvider
		logger.Info("Google sign-in enabled", map[string]interface{}{"issuer": cfg.OAuth.Google.IssuerURL})
	}

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService, userService, cfg.Server.Secure)
	requestLogger := middleware.NewRequestLogger(logger)
	loginLimiter := middleware.NewRateLimiter(redisAdapter, "login", int64(cfg.RateLimit.LoginAttempts), cfg.RateLimit.LoginWindow, nil, true)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promhttp.Handler()
	}

	mux := newRouter(routes{
		health:       handlers.NewHealthHandler(db, redisDB),
		auth:         handlers.NewAuthHandler(userService, authService, cfg.Server.Secure),
		providerAuth: handlers.NewProviderAuthHandler(providerAuthService, authService, redisAdapter, oauthProviders, cfg.Server.Secure),
		profile:      handlers.NewProfileHandler(userService, ratingService),
		reference:    handlers.NewReferenceHandler(locationService, interestService),
		friend:       handlers.NewFriendHandler(friendService, matchService),
		rating:       handlers.NewRatingHandler(ratingService),
		message:      handlers.NewMessageHandler(messageService),
		group:        handlers.NewGroupHandler(groupService),
		event:        handlers.NewEventHandler(eventService),
		admin:        handlers.NewAdminHandler(adminService, interestService, locationService),
		metrics:      metricsHandler,

		requireSession: authMiddleware.RequireSession,
		requireAdmin:   authMiddleware.RequireAdmin,
		loginLimit:     loginLimiter.Middleware,
	})

	// Build middleware chain (order matters: outermost first). Metrics wraps
	// the mux directly so it sees the matched route pattern.
	var handler http.Handler = mux
	handler = middleware.Metrics(handler)
	handler = authMiddleware.Authenticate(handler)
	handler = requestLogger.Apply(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
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
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

type routes struct {
	health       *handlers.HealthHandler
	auth         *handlers.AuthHandler
	providerAuth *handlers.ProviderAuthHandler
	profile      *handlers.ProfileHandler
	reference    *handlers.ReferenceHandler
	friend       *handlers.FriendHandler
	rating       *handlers.RatingHandler
	message      *handlers.MessageHandler
	group        *handlers.GroupHandler
	event        *handlers.EventHandler
	admin        *handlers.AdminHandler
	metrics      http.Handler

	requireSession func(http.Handler) http.Handler
	requireAdmin   func(http.Handler) http.Handler
	loginLimit     func(http.Handler) http.Handler
}

func newRouter(rt routes) *http.ServeMux {
	session := func(fn http.HandlerFunc) http.Handler { return rt.requireSession(fn) }
	admin := func(fn http.HandlerFunc) http.Handler { return rt.requireAdmin(fn) }

	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", rt.health.Health)
	mux.HandleFunc("GET /live", rt.health.Live)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics)
	}

	// Auth endpoints
	mux.Handle("POST /api/auth/register", rt.loginLimit(http.HandlerFunc(rt.auth.Register)))
	mux.Handle("POST /api/auth/login", rt.loginLimit(http.HandlerFunc(rt.auth.Login)))
	mux.HandleFunc("POST /api/auth/logout", rt.auth.Logout)
	mux.Handle("GET /api/auth/me", session(rt.auth.Me))
	mux.HandleFunc("GET /api/auth/{provider}/start", rt.providerAuth.Start)
	mux.HandleFunc("GET /api/auth/{provider}/callback", rt.providerAuth.Callback)
	mux.HandleFunc("POST /api/auth/{provider}/complete", rt.providerAuth.Complete)

	// Reference data
	mux.HandleFunc("GET /api/cities", rt.reference.ListCities)
	mux.HandleFunc("GET /api/neighborhoods", rt.reference.ListNeighborhoods)
	mux.HandleFunc("GET /api/interests", rt.reference.ListInterests)

	// Profile endpoints
	mux.Handle("GET /api/profile", session(rt.profile.GetProfile))
	mux.Handle("PUT /api/profile", session(rt.profile.UpdateProfile))
	mux.Handle("GET /api/users/{id}", session(rt.profile.GetPublicProfile))

	// Rating endpoints
	mux.Handle("PUT /api/users/{id}/rating", session(rt.rating.Submit))
	mux.Handle("DELETE /api/users/{id}/rating", session(rt.rating.Delete))
	mux.Handle("GET /api/users/{id}/reviews", session(rt.rating.ListReviews))

	// Matching and friends
	mux.Handle("GET /api/matches", session(rt.friend.Matches))
	mux.Handle("GET /api/friends", session(rt.friend.ListFriends))
	mux.Handle("DELETE /api/friends/{userID}", session(rt.friend.Unfriend))
	mux.Handle("GET /api/friends/requests", session(rt.friend.ListIncoming))
	mux.Handle("POST /api/friends/requests", session(rt.friend.SendRequest))
	mux.Handle("DELETE /api/friends/requests/{userID}", session(rt.friend.CancelRequest))
	mux.Handle("POST /api/friends/requests/{id}/accept", session(rt.friend.AcceptRequest))
	mux.Handle("POST /api/friends/requests/{id}/decline", session(rt.friend.DeclineRequest))

	// Messages
	mux.Handle("GET /api/messages/{id}", session(rt.message.Conversation))
	mux.Handle("POST /api/messages/{id}", session(rt.message.Send))

	// Groups, posts and comments
	mux.Handle("GET /api/groups", session(rt.group.Suggestions))
	mux.Handle("POST /api/groups", session(rt.group.Create))
	mux.Handle("GET /api/groups/{id}", session(rt.group.Detail))
	mux.Handle("POST /api/groups/{id}/join", session(rt.group.Join))
	mux.Handle("POST /api/groups/{id}/leave", session(rt.group.Leave))
	mux.Handle("POST /api/groups/{id}/posts", session(rt.group.CreatePost))
	mux.Handle("DELETE /api/posts/{id}", session(rt.group.DeletePost))
	mux.Handle("POST /api/posts/{id}/comments", session(rt.group.AddComment))
	mux.Handle("DELETE /api/comments/{id}", session(rt.group.DeleteComment))

	// Events
	mux.Handle("POST /api/groups/{id}/events", session(rt.event.Create))
	mux.Handle("DELETE /api/events/{id}", session(rt.event.Delete))
	mux.Handle("POST /api/events/{id}/join", session(rt.event.Join))
	mux.Handle("POST /api/events/{id}/leave", session(rt.event.Leave))

	// Administration
	mux.Handle("GET /api/admin/users", admin(rt.admin.ListUsers))
	mux.Handle("GET /api/admin/groups", admin(rt.admin.ListGroups))
	mux.Handle("GET /api/admin/posts", admin(rt.admin.ListPosts))
	mux.Handle("GET /api/admin/events", admin(rt.admin.ListEvents))
	mux.Handle("GET /api/admin/ratings", admin(rt.admin.ListRatings))
	mux.Handle("GET /api/admin/interests", admin(rt.admin.ListInterests))
	mux.Handle("POST /api/admin/users/{id}/admin", admin(rt.admin.MakeAdmin))
	mux.Handle("DELETE /api/admin/users/{id}/admin", admin(rt.admin.RevokeAdmin))
	mux.Handle("POST /api/admin/users/{id}/restrict", admin(rt.admin.Restrict))
	mux.Handle("DELETE /api/admin/users/{id}/restrict", admin(rt.admin.Unrestrict))
	mux.Handle("DELETE /api/admin/users/{id}", admin(rt.admin.DeleteUser))
	mux.Handle("DELETE /api/admin/groups/{id}", admin(rt.admin.DeleteGroup))
	mux.Handle("DELETE /api/admin/posts/{id}", admin(rt.admin.DeletePost))
	mux.Handle("DELETE /api/admin/events/{id}", admin(rt.admin.DeleteEvent))
	mux.Handle("DELETE /api/admin/ratings/{raterID}/{rateeID}", admin(rt.admin.DeleteRating))
	mux.Handle("POST /api/admin/interests", admin(rt.admin.CreateInterest))
	mux.Handle("PUT /api/admin/interests/{id}", admin(rt.admin.UpdateInterest))
	mux.Handle("DELETE /api/admin/interests/{id}", admin(rt.admin.DeleteInterest))
	mux.Handle("POST /api/admin/cities", admin(rt.admin.AddCity))
	mux.Handle("POST /api/admin/neighborhoods", admin(rt.admin.AddNeighborhood))

	return mux
}
