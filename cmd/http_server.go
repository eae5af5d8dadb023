package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/payment-verification/internal"
	"github.com/frahmantamala/payment-verification/internal/auth"
	"github.com/frahmantamala/payment-verification/internal/core/events"
	"github.com/frahmantamala/payment-verification/internal/notifier"
	notifierStore "github.com/frahmantamala/payment-verification/internal/notifier/postgres"
	"github.com/frahmantamala/payment-verification/internal/transaction"
	transactionStore "github.com/frahmantamala/payment-verification/internal/transaction/postgres"
	"github.com/frahmantamala/payment-verification/internal/transport/rest"
	"github.com/frahmantamala/payment-verification/internal/verification"
	verificationStore "github.com/frahmantamala/payment-verification/internal/verification/postgres"
	"github.com/frahmantamala/payment-verification/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle ingestion and verification requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config         *internal.Config
	DB             *sqlx.DB
	GormDB         *gorm.DB
	Router         *chi.Mux
	Logger         *slog.Logger
	NotifierClient *notifier.Client
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		deps.NotifierClient.Shutdown()
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	appLogger := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// gorm shares the pgx stdlib pool opened by sqlx
	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	tolerance, err := config.Matching.Tolerance()
	if err != nil {
		return nil, fmt.Errorf("invalid amount tolerance: %w", err)
	}

	eventBus := events.NewEventBus(appLogger)
	tokens := auth.NewTokenManager(config.Security.TokenSecret, config.Security.TokenDuration)

	// repositories
	txRepo := transactionStore.NewTransactionRepository(gormDB)
	verRepo := verificationStore.NewVerificationRepository(gormDB)
	notifRepo := notifierStore.NewNotificationRepository(gormDB)

	// notifier pushes confirmations through the WhatsApp bridge and records
	// every attempt in notification_logs
	notifService := notifier.NewService(nil, notifRepo, config.Notifier.AdminPhone, appLogger)
	notifClient := notifier.NewClient(notifier.Config{
		BridgeURL:      config.Notifier.BridgeURL,
		SendTimeout:    config.Notifier.SendTimeout,
		MaxWorkers:     config.Notifier.MaxWorkers,
		JobQueueSize:   config.Notifier.JobQueueSize,
		WorkerPoolSize: config.Notifier.WorkerPoolSize,
	}, notifService.RecordResult, appLogger)
	notifService.SetClient(notifClient)
	notifService.Subscribe(eventBus)

	// the transaction repository doubles as the claim path's store lookup
	verService := verification.NewService(verRepo, txRepo, eventBus, tolerance, appLogger)
	txService := transaction.NewService(txRepo, verService, eventBus, appLogger)

	txHandler := transaction.NewHandler(txService)
	verHandler := verification.NewHandler(verService)
	notifHandler := notifier.NewHandler(notifService)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, tokens, txHandler, verHandler, notifHandler, appLogger)

	return &Dependencies{
		Config:         config,
		Logger:         appLogger,
		DB:             db,
		GormDB:         gormDB,
		Router:         router,
		NotifierClient: notifClient,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
