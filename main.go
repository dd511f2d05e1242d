// Package main provides the main entry point for the Mailboard bulk-mailing service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/svetlov/mailboard/app/handlers"
	"github.com/svetlov/mailboard/app/middleware"
	"github.com/svetlov/mailboard/app/router"
	"github.com/svetlov/mailboard/app/services"
	businessflow "github.com/svetlov/mailboard/business_flow"
	"github.com/svetlov/mailboard/config"
	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/repository"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	stopFuncs []func()
}

func main() {
	log.Println("Starting Mailboard application...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging directs the standard logger to stdout, a rotating file, or
// both, depending on configuration
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	switch cfg.Output {
	case "file":
		log.SetOutput(rotator)
	case "both":
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Recipient{},
		&models.Message{},
		&models.Mailing{},
		&models.Attempt{},
		&models.AuditLog{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically
// pings Redis to detect connectivity issues. The returned cancel function
// stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeMailTransport picks the outgoing transport based on configuration
func initializeMailTransport(cfg config.SMTPConfig) services.MailTransport {
	if cfg.Mock {
		log.Println("Using mock mail transport")
		return services.NewMockMailTransport()
	}
	return services.NewSMTPMailTransport(cfg)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.PingPeriod)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	mailingRepo := repository.NewMailingRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	mailTransport := initializeMailTransport(cfg.SMTP)

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Business flows
	userFlow := businessflow.NewUserFlow(userRepo, auditRepo, tokenService, db)
	recipientFlow := businessflow.NewRecipientFlow(recipientRepo, userRepo, auditRepo, db, rc, &cfg.Cache)
	messageFlow := businessflow.NewMessageFlow(messageRepo, userRepo, auditRepo, db, rc, &cfg.Cache)
	mailingFlow := businessflow.NewMailingFlow(mailingRepo, messageRepo, recipientRepo, userRepo, auditRepo, db, rc, &cfg.Cache)
	dispatchFlow := businessflow.NewDispatchFlow(mailingRepo, messageRepo, recipientRepo, attemptRepo, userRepo, auditRepo, mailTransport, cfg.SMTP, db, rc, &cfg.Cache)
	statsFlow := businessflow.NewStatsFlow(mailingRepo, recipientRepo, messageRepo, attemptRepo, userRepo, rc, &cfg.Cache)

	// Handlers
	authHandler := handlers.NewAuthHandler(userFlow)
	recipientHandler := handlers.NewRecipientHandler(recipientFlow)
	messageHandler := handlers.NewMessageHandler(messageFlow)
	mailingHandler := handlers.NewMailingHandler(mailingFlow, dispatchFlow)
	statsHandler := handlers.NewStatsHandler(statsFlow)

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	r := router.NewFiberRouter(
		cfg,
		authHandler,
		recipientHandler,
		messageHandler,
		mailingHandler,
		statsHandler,
		authMiddleware,
	)

	return &Application{
		router:    r,
		config:    cfg,
		stopFuncs: stopFuncs,
	}, nil
}
