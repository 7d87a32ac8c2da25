package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"summit-ticketing/internal/analytics"
	analytics_api "summit-ticketing/internal/analytics/api"
	"summit-ticketing/internal/audit"
	"summit-ticketing/internal/audit/audit_api"
	"summit-ticketing/internal/auth"
	"summit-ticketing/internal/config"
	"summit-ticketing/internal/database/migrations"
	"summit-ticketing/internal/export"
	"summit-ticketing/internal/kafka"
	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/models"
	"summit-ticketing/internal/notify"
	"summit-ticketing/internal/promo"
	"summit-ticketing/internal/promo/promo_api"
	"summit-ticketing/internal/purchase"
	purchase_db "summit-ticketing/internal/purchase/db"
	"summit-ticketing/internal/purchase/purchase_api"
	"summit-ticketing/internal/qr"
	"summit-ticketing/internal/reconcile"
	"summit-ticketing/internal/reconcile/reconcile_api"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func connectPostgres(cfg *config.Config, log *logger.Logger) *bun.DB {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))
	return client
}

func healthHandler(db *bun.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func main() {
	log := logger.New("summit-ticketing")
	defer log.Close()

	log.Info("APP", "Starting Summit Ticketing Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg, log)
	defer bunDB.Close()

	redisClient := connectRedis(ctx, cfg, log)
	defer redisClient.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: cfg.Database.MigrationsDir,
		AutoMigrate:   true,
	})
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	defer runner.Close()

	var producer purchase.EventPublisher
	var kafkaProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		kafkaProducer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.PurchaseEvents)
		producer = kafkaProducer
		log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for topic %s", cfg.Kafka.Topics.PurchaseEvents))
	} else {
		producer = kafka.NopProducer{}
		log.Warn("KAFKA", "Kafka disabled, purchase events will not be published")
	}

	var notifier purchase.Notifier = notify.NopNotifier{}
	if cfg.Notify.BaseURL != "" {
		notifier = notify.Async{Notifier: notify.New(cfg.Notify.BaseURL, log)}
		log.Info("NOTIFY", fmt.Sprintf("Notification service configured at %s", cfg.Notify.BaseURL))
	}

	auditRecorder := audit.NewRecorder(bunDB)
	promoService := promo.NewService(&promo.DB{Bun: bunDB}, log)
	purchaseDB := &purchase_db.DB{Bun: bunDB}
	purchaseService := purchase.NewService(
		purchaseDB, promoService, auditRecorder, producer, notifier, log, cfg.Server.StoreTimeout)
	reconcileService := reconcile.NewService(
		&reconcile.DB{Bun: bunDB}, purchaseService, auditRecorder, log, cfg.Server.StoreTimeout)
	analyticsService := analytics.NewService(bunDB)
	exporter := export.NewExporter(bunDB, log)
	qrGen := qr.NewGenerator(cfg.QRSecret)

	purchaseHandler := purchase_api.NewHandler(purchaseService, purchaseDB, qrGen, log)
	promoHandler := promo_api.NewHandler(promoService, analyticsService, log)
	reconcileHandler := reconcile_api.NewHandler(reconcileService, log)
	analyticsHandler := analytics_api.NewHandler(analyticsService, exporter, log)
	auditHandler := audit_api.NewHandler(auditRecorder, log)

	adminDir := auth.NewAdminDirectory(
		&http.Client{Timeout: 10 * time.Second},
		redisClient, cfg.Auth.AdminServiceURL, cfg.Auth.AdminCacheTTL, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/health", healthHandler(bunDB))

	// --- Protected Routes ---
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Auth.OIDCIssuer != "" {
			r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))
			log.Info("AUTH", "OIDC middleware applied to /api/v1 routes")
		} else {
			log.Warn("AUTH", "OIDC_ISSUER not set, /api/v1 routes are unauthenticated")
		}

		purchaseHandler.RegisterRoutes(r)
		promoHandler.RegisterRoutes(r)
		log.Info("ROUTER", "Purchase and promo routes registered under /api/v1")

		r.Group(func(r chi.Router) {
			r.Use(auth.AdminOnly(adminDir))
			purchaseHandler.RegisterAdminRoutes(r)
			reconcileHandler.RegisterRoutes(r)
			analyticsHandler.RegisterRoutes(r)
			auditHandler.RegisterRoutes(r)
			log.Info("ROUTER", "Admin routes registered under /api/v1")
		})
	})

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.PaymentEvents, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		go consumer.Start(consumerCtx, func(ctx context.Context, event models.GatewayEvent) {
			if _, err := reconcileService.RecordTransaction(ctx, event.PurchaseID, event.GatewayRef, event.Amount, event.Status); err != nil {
				log.Error("RECONCILE", fmt.Sprintf("apply gateway event %s: %v", event.GatewayRef, err))
			}
		})
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Summit Ticketing Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	stopConsumer()
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Producer close failed: %v", err))
		}
	}

	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Summit Ticketing Service shutdown complete")
	}
}
