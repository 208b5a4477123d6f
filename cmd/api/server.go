package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/prescripto-api/internal/config"
	"github.com/harentsoaR/prescripto-api/internal/handlers"
	"github.com/harentsoaR/prescripto-api/internal/middleware"
	"github.com/harentsoaR/prescripto-api/internal/repository"
	"github.com/harentsoaR/prescripto-api/internal/services"
	"github.com/harentsoaR/prescripto-api/internal/utils"
)

func runServer(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	var store *repository.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store = repository.NewMemoryStore()
		logger.Warn().Msg("Using the in-memory store; data is lost on restart")
	default:
		client, db, err := connectMongo(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		if err := repository.EnsureIndexes(ctx, db); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
		store = repository.NewMongoStore(db)
		logger.Info().Str("database", cfg.MongoDatabase).Msg("Connected to MongoDB")
	}

	var resetTokens repository.ResetTokenStore
	if cfg.RedisURL != "" {
		rdb, err := repository.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		resetTokens = repository.NewRedisResetTokens(rdb)
	} else {
		resetTokens = repository.NewMemoryResetTokens()
		logger.Warn().Msg("REDIS_URL not set; password reset tokens are kept in memory")
	}

	// --- Collaborators ---
	var mailer services.Mailer = services.NewLogMailer(logger)
	if cfg.SMTPConfigured() {
		mailer = services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	}
	var sms services.SMSSender
	if cfg.SMSConfigured() {
		sms = services.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
	}
	images := services.NewDisabledImageStore()
	if cfg.CloudinaryURL != "" {
		cld, err := services.NewCloudinaryStore(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			return err
		}
		images = cld
	}
	var payments services.PaymentGateway
	if cfg.PaymentsConfigured() {
		payments = services.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)
	}

	dispatcher := services.NewDispatcher(store.Outbox, mailer, sms, logger, services.DispatcherOptions{
		Workers:       cfg.OutboxWorkers,
		MaxAttempts:   cfg.OutboxMaxAttempts,
		RetrySchedule: cfg.OutboxRetrySchedule,
		RetryDelay:    time.Minute,
	})
	if err := dispatcher.Start(ctx); err != nil {
		return err
	}
	defer dispatcher.Stop()

	jwt := utils.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	svc := services.New(services.Deps{
		Store:        store,
		ResetTokens:  resetTokens,
		JWT:          jwt,
		Notifier:     dispatcher,
		Images:       images,
		Payments:     payments,
		Admin:        services.AdminCredentials{Email: cfg.AdminEmail, Password: cfg.AdminPassword},
		Payment:      services.PaymentOptions{Currency: cfg.PaymentCurrency, CallbackURL: cfg.PaymentCallbackURL},
		ContactInbox: cfg.ContactInbox,
		AppURL:       cfg.AppURL,
		Log:          logger,
	})

	// --- Gin Router ---
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "token", "dtoken", "atoken"},
		ExposeHeaders:    []string{middleware.HeaderRequestID},
		AllowCredentials: true,
	}))

	handlers.NewHandler(svc, logger).RegisterRoutes(r, jwt)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}
	return nil
}
