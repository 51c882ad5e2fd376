package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/fkhayef/chaikhata/docs"
	"github.com/fkhayef/chaikhata/internal/auth"
	"github.com/fkhayef/chaikhata/internal/config"
	"github.com/fkhayef/chaikhata/internal/database"
	"github.com/fkhayef/chaikhata/internal/entry"
	"github.com/fkhayef/chaikhata/internal/events"
	"github.com/fkhayef/chaikhata/internal/group"
	"github.com/fkhayef/chaikhata/internal/metrics"
	"github.com/fkhayef/chaikhata/internal/payment"
	"github.com/fkhayef/chaikhata/internal/realtime"
	"github.com/fkhayef/chaikhata/internal/report"
	"github.com/fkhayef/chaikhata/internal/session"
	"github.com/fkhayef/chaikhata/internal/user"
	"github.com/fkhayef/chaikhata/pkg/logging"
	mw "github.com/fkhayef/chaikhata/pkg/middleware"
)

// @title                       Chai Khata API
// @version                     1.0
// @description                 Shared chai and coffee expense tracking for office groups.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// Load .env file
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)
	if envErr != nil {
		logger.Info("No .env file found, using environment variables")
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	loc := cfg.Location()

	// Money is encoded as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Change notifications
	hub := realtime.NewHub(logger)
	go func() {
		if err := hub.Listen(ctx, cfg.DatabaseURL); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Change listener stopped", "error", err)
		}
	}()

	// Domain events
	var publisher events.Publisher = events.NewLogPublisher(logger)
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", "error", err)
			os.Exit(1)
		}
		publisher = amqpPublisher
	}
	defer publisher.Close()

	// User feature
	userRepo := user.NewRepository(db)
	userService := user.NewService(userRepo)
	userHandler := user.NewHandler(userService)

	// Auth feature
	var verifier auth.IdentityVerifier
	if cfg.GoogleClientID != "" {
		verifier = auth.NewGoogleVerifier(cfg.GoogleClientID)
	}
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(userRepo, auth.NewRepository(db), jwtManager, verifier,
		publisher, cfg.PasswordResetTTL, logger)
	authHandler := auth.NewHandler(authService)

	// Group feature
	groupRepo := group.NewRepository(db)
	groupService := group.NewService(groupRepo, userRepo, publisher, cfg.GroupIDPrefix, logger)
	groupHandler := group.NewHandler(groupService)

	// Entry feature
	entryRepo := entry.NewRepository(db)
	entryService := entry.NewService(entryRepo, groupService, loc, logger)
	entryHandler := entry.NewHandler(entryService)

	// Payment feature
	paymentRepo := payment.NewRepository(db)
	paymentService := payment.NewService(paymentRepo, groupService, publisher, logger)
	paymentHandler := payment.NewHandler(paymentService)

	// Reports and live session
	reportHandler := report.NewHandler(report.NewService(entryService, paymentService, groupService, loc))
	sessionHandler := session.NewHandler(hub,
		session.NewRepositorySource(userRepo, groupRepo, entryRepo, paymentRepo), loc, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	docs.SwaggerInfo.BasePath = "/api/v1"
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(authService))
			r.Use(user.Middleware(userService))

			r.Mount("/users", userHandler.Routes())
			r.Mount("/groups", groupHandler.Routes())
			r.Mount("/entries", entryHandler.Routes())
			r.Mount("/payments", paymentHandler.Routes())
			r.Mount("/reports", reportHandler.Routes())
			r.Get("/stream", sessionHandler.Stream)
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
		// Cancelled on shutdown so open streams end.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Server starting", "port", cfg.Port, "timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
