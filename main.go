package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abdulllahhh/Comfy/common/logger"
	"github.com/abdulllahhh/Comfy/config"
	"github.com/abdulllahhh/Comfy/controllers"
	"github.com/abdulllahhh/Comfy/database"
	"github.com/abdulllahhh/Comfy/kafka"
	"github.com/abdulllahhh/Comfy/metrics"
	"github.com/abdulllahhh/Comfy/middleware"
	awspkg "github.com/abdulllahhh/Comfy/pkg/aws"
	"github.com/abdulllahhh/Comfy/repository"
	"github.com/abdulllahhh/Comfy/routes"
	"github.com/abdulllahhh/Comfy/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	stripeclient "github.com/stripe/stripe-go/v80/client"
	"go.uber.org/zap"
)

const serviceName = "comfy"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Initialize(os.Getenv("APP_ENV")).Fatal("Failed to load config", zap.Error(err))
	}

	log := logger.Initialize(cfg.AppEnv)
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()

	// AWS is optional; without it secrets come from env and events stay local.
	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx)
	if awsErr != nil {
		log.Warn("AWS config unavailable, SNS, CloudWatch and Secrets Manager disabled", zap.Error(awsErr))
	}

	if cfg.StripeSecretID != "" {
		if awsErr != nil {
			log.Fatal("STRIPE_SECRET_ID set but AWS config is unavailable", zap.Error(awsErr))
		}
		raw, err := awspkg.NewSecretReader(awsCfg).Read(ctx, cfg.StripeSecretID)
		if err != nil {
			log.Fatal("Failed to read Stripe secret", zap.Error(err))
		}
		if err := cfg.ApplyStripeSecret(raw); err != nil {
			log.Fatal("Invalid Stripe secret", zap.Error(err))
		}
	}

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close() //nolint:errcheck
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	var cloudWatch *awspkg.MetricsClient
	if awsErr == nil {
		cloudWatch = awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	}

	publisher, closePublisher := buildLedgerPublisher(cfg, awsCfg, awsErr, cloudWatch, log)
	defer closePublisher()

	// Repositories
	ledger := repository.NewGormLedgerRepo(db)
	identities := repository.NewGormIdentityStore(db)

	// Services
	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenTTL)
	authService := services.NewAuthService(identities, tokens, publisher, cfg.RefreshTokenTTL, cfg.SignupBonusCredits, log)
	stripeAPI := stripeclient.New(cfg.StripeSecretKey, nil)
	checkout := services.NewCheckoutService(stripeAPI.CheckoutSessions, cfg.FrontendURL, log)
	processor := services.NewEventProcessor(ledger, cfg.StripeWebhookKey, cfg.WebhookMaxEventAge, publisher, ledgerMetrics, log)
	runner := services.NewHTTPWorkflowRunner(cfg.WorkflowServiceURL, cfg.WorkflowTimeout)
	guard := services.NewDebitGuard(ledger, runner, publisher, ledgerMetrics, log)
	reconciler := services.NewReconciliationService(ledger, ledgerMetrics, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(cloudWatch, serviceName))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Handlers{
		Auth:     controllers.NewAuthController(authService, log),
		Payment:  controllers.NewPaymentController(checkout, processor, log),
		Credits:  controllers.NewCreditsController(ledger, reconciler, log),
		Workflow: controllers.NewWorkflowController(guard, log),
		Metrics:  ledgerMetrics.Handler(),
		Tokens:   tokens,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Comfy service started", zap.String("port", cfg.Port), zap.String("db_driver", cfg.DBDriver))
	<-quit
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited cleanly")
}

// buildLedgerPublisher picks Kafka, then SNS, then a no-op, and wraps the
// choice with CloudWatch business metrics.
func buildLedgerPublisher(cfg *config.Config, awsCfg sdkaws.Config, awsErr error, cw *awspkg.MetricsClient, log *zap.Logger) (services.LedgerEventPublisher, func()) {
	next := services.LedgerEventPublisher(services.NoopLedgerPublisher{})
	closeFn := func() {}

	switch {
	case cfg.KafkaBrokers != "":
		producer := kafka.NewLedgerEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaLedgerTopic, log)
		next = producer
		closeFn = func() {
			if err := producer.Close(); err != nil {
				log.Warn("Failed to close Kafka producer", zap.Error(err))
			}
		}
		log.Info("Publishing ledger events to Kafka", zap.String("topic", cfg.KafkaLedgerTopic))
	case cfg.LedgerSNSTopicARN != "" && awsErr == nil:
		next = &services.SNSLedgerPublisher{SNS: awspkg.NewSNSClient(awsCfg), TopicArn: cfg.LedgerSNSTopicARN}
		log.Info("Publishing ledger events to SNS", zap.String("topic_arn", cfg.LedgerSNSTopicARN))
	default:
		log.Info("Ledger event publishing disabled")
	}

	if !cw.IsEnabled() {
		return next, closeFn
	}
	return &services.MeteredLedgerPublisher{Next: next, Metrics: cw, Service: serviceName, Logger: log}, closeFn
}
