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

	"summit-ticketing/internal/audit"
	"summit-ticketing/internal/config"
	"summit-ticketing/internal/kafka"
	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/notify"
	"summit-ticketing/internal/payment/webhook"
	"summit-ticketing/internal/promo"
	"summit-ticketing/internal/purchase"
	purchase_db "summit-ticketing/internal/purchase/db"
	"summit-ticketing/internal/reconcile"
	"summit-ticketing/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// Standalone ingress for Stripe callbacks. Runs separately from the main
// gateway so webhook traffic can be scaled and firewalled on its own.
func main() {
	log := logger.New("payment-webhook")
	defer log.Close()

	log.Info("APP", "Starting payment webhook service")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	if cfg.Stripe.WebhookSecret == "" {
		log.Fatal("CONFIG", "STRIPE_WEBHOOK_SECRET not set")
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()
	log.Info("DATABASE", "PostgreSQL connection successful")

	auditRecorder := audit.NewRecorder(bunDB)
	promoService := promo.NewService(&promo.DB{Bun: bunDB}, log)
	purchaseService := purchase.NewService(
		&purchase_db.DB{Bun: bunDB}, promoService, auditRecorder,
		kafka.NopProducer{}, notify.NopNotifier{}, log, cfg.Server.StoreTimeout)
	reconcileService := reconcile.NewService(
		&reconcile.DB{Bun: bunDB}, purchaseService, auditRecorder, log, cfg.Server.StoreTimeout)

	stripeHandler := webhook.NewStripeHandler(cfg.Stripe.WebhookSecret, reconcileService, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, utils.SuccessResponse("payment webhook service healthy", nil))
	})
	router.POST("/webhook/stripe", gin.WrapF(stripeHandler.HandleWebhook))

	port := os.Getenv("WEBHOOK_PORT")
	if port == "" {
		port = ":8085"
	}

	server := &http.Server{
		Addr:         port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Payment webhook service running on %s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}
}
