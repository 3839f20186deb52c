package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"aml-monitor/internal/alerting"
	"aml-monitor/internal/cache"
	"aml-monitor/internal/chain"
	"aml-monitor/internal/config"
	"aml-monitor/internal/controller"
	"aml-monitor/internal/database"
	"aml-monitor/internal/external"
	"aml-monitor/internal/monitoring"
	"aml-monitor/internal/pipeline"
	"aml-monitor/internal/risk"
	"aml-monitor/internal/scheduler"
	"aml-monitor/internal/service"
	"aml-monitor/pkg/logger"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Logging)

	logrus.WithFields(logrus.Fields{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
		"port":       cfg.Server.Port,
	}).Info("Starting AML monitor")

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApp(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.cleanup()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logrus.WithField("address", server.Addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	if err := app.scheduler.Start(); err != nil {
		logrus.Fatalf("Failed to start monitoring scheduler: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down...")

	app.scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	cancel()
	logrus.Info("Server exited")
}

// Application holds all wired dependencies.
type Application struct {
	config    *config.Config
	router    *gin.Engine
	scheduler *scheduler.Scheduler
	cleanup   func()
}

func initializeApp(ctx context.Context, cfg *config.Config) (*Application, error) {
	logrus.Info("Initializing application dependencies...")

	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cacheService := cache.NewRedisCache(db.RedisDB, cfg.Redis.KeyPrefix)
	if err := cacheService.SeedDenylist(ctx, cfg.Risk.DenylistedAddresses); err != nil {
		logrus.WithError(err).Warn("Failed to seed denylist cache")
	}

	metrics := monitoring.NewMetrics()
	registry := chain.NewRegistry(cfg)

	var notifier external.Notifier
	if cfg.RabbitMQ.Enabled {
		notifier, err = external.NewRabbitNotifier(cfg.RabbitMQ)
		if err != nil {
			logrus.WithError(err).Warn("RabbitMQ unavailable, alert notifications disabled")
			notifier = external.NewNopNotifier()
		}
	} else {
		notifier = external.NewNopNotifier()
	}

	emitter := alerting.NewEmitter(db.Repositories.Alert, notifier, metrics)

	var remote risk.Scorer
	if cfg.Analyzer.Enabled {
		remote = risk.NewRemoteScorer(cfg.Analyzer)
	}
	rules := risk.NewRuleScorer(cfg.Risk.DenylistedAddresses, cfg.Risk.HighFrequencyCount)
	engine := risk.NewEngine(remote, rules, db.Repositories.Transaction, db.Repositories.Wallet, emitter, metrics)

	pipe := pipeline.NewPipeline(registry, engine, db.Repositories.Transaction, db.Repositories.Wallet, cacheService, metrics)
	sched := scheduler.NewScheduler(pipe, db.Repositories.Wallet, metrics, cfg.Monitor)

	walletService := service.NewWalletService(db.Repositories.Wallet, db.Repositories.Transaction, pipe, registry, cacheService)
	alertService := service.NewAlertService(db.Repositories.Alert)

	router := setupRouter(cfg, db, walletService, alertService)

	cleanup := func() {
		logrus.Info("Cleaning up application resources...")
		if err := notifier.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close notifier")
		}
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := db.Close(closeCtx); err != nil {
			logrus.WithError(err).Warn("Failed to close database connections")
		}
	}

	logrus.WithField("chains", registry.Blockchains()).Info("Application initialization completed")

	return &Application{
		config:    cfg,
		router:    router,
		scheduler: sched,
		cleanup:   cleanup,
	}, nil
}

func setupRouter(
	cfg *config.Config,
	db *database.Database,
	walletService service.WalletService,
	alertService service.AlertService,
) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}))

	healthController := controller.NewHealthController(db)
	walletController := controller.NewWalletController(walletService)
	alertController := controller.NewAlertController(alertService)

	router.GET("/health", healthController.Health)
	router.GET("/ready", healthController.Ready)
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
			"service":    "aml-monitor",
		})
	})

	if cfg.Monitoring.EnableMetrics {
		path := cfg.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api")
	{
		wallets := api.Group("/wallets")
		{
			wallets.POST("", walletController.RegisterWallet)
			wallets.GET("/:address", walletController.GetWallet)
			wallets.GET("/:address/transactions", walletController.GetWalletTransactions)
			wallets.POST("/:address/scan", walletController.ScanWallet)
			wallets.PATCH("/:address/monitoring", walletController.SetMonitoring)
		}

		api.GET("/transactions/:hash", walletController.GetTransaction)
		api.GET("/users/:userId/wallets", walletController.ListUserWallets)
		api.GET("/users/:userId/alerts", alertController.ListUserAlerts)

		alerts := api.Group("/alerts")
		{
			alerts.PATCH("/:id/read", alertController.MarkAlertRead)
			alerts.PATCH("/:id/resolve", alertController.MarkAlertResolved)
		}
	}

	return router
}
