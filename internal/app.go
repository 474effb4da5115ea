// internal/app.go
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	router "fdvault/internal/api"
	"fdvault/internal/api/handler"
	"fdvault/internal/audit"
	"fdvault/internal/audit/kafka"
	"fdvault/internal/config"
	"fdvault/internal/ledger"
	"fdvault/internal/metrics"
	"fdvault/internal/repository"
	"fdvault/internal/repository/memory"
	"fdvault/internal/repository/postgres"
	"fdvault/internal/service"
	"fdvault/internal/util"
	"fdvault/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *zap.Logger
	DB     *sqlx.DB // nil with in-memory storage

	// Repositories
	TransactionRepository  repository.TransactionRepository
	FixedDepositRepository repository.FixedDepositRepository
	AccountRepository      repository.AccountRepository

	Ledger    *ledger.Ledger
	Metrics   *metrics.Metrics
	Publisher *kafka.Publisher // nil when no brokers are configured
	AuditLog  *audit.Log

	// Services
	VaultService service.VaultService

	// HTTP API
	HTTPHandler http.Handler

	stopScheduler context.CancelFunc
	schedulerDone chan struct{}
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize loads configuration and initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.InitializeWithConfig(ctx, cfg)
}

// InitializeWithConfig initializes all application components from cfg.
func (app *Application) InitializeWithConfig(ctx context.Context, cfg *config.AppConfig) error {
	app.Config = cfg

	// 1. Initialize Logger
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.", zap.String("storage", cfg.Storage))

	// 2. Initialize Metrics
	app.Metrics = metrics.New()

	// 3. Initialize Storage and Repositories
	var (
		reader  repository.DBExecutor
		runInTx repository.TxRunner
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		database, err := db.NewPostgresDB(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		app.DB = database
		if err := postgres.Migrate(ctx, app.DB); err != nil {
			return err
		}
		app.Metrics.RegisterDB(app.DB.DB, cfg.DB.DBName)
		app.TransactionRepository = postgres.NewTransactionRepository()
		app.FixedDepositRepository = postgres.NewFixedDepositRepository()
		app.AccountRepository = postgres.NewAccountRepository()
		reader = app.DB
		runInTx = postgres.NewTxRunner(app.DB)
		app.Logger.Info("Database connection established.")
	default:
		store := memory.NewStore()
		app.TransactionRepository = store
		app.FixedDepositRepository = store
		app.AccountRepository = store
		runInTx = store.RunInTx
	}
	app.Logger.Info("Repositories initialized.")

	// 4. Initialize Event Publisher
	var publisher audit.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		app.Publisher = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		publisher = app.Publisher
		app.Logger.Info("Kafka publisher initialized.", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// 5. Initialize Ledger and Services
	l, err := ledger.New(cfg.Ledger)
	if err != nil {
		return err
	}
	app.Ledger = l
	app.AuditLog = audit.NewLog(reader, runInTx, app.TransactionRepository, app.FixedDepositRepository, publisher, app.Metrics, app.Logger)
	app.VaultService = service.NewVaultService(
		app.Ledger,
		app.AuditLog,
		app.AccountRepository,
		reader,
		runInTx,
		app.Metrics,
		app.Logger,
		service.Options{
			OpeningEth:    cfg.OpeningEth,
			OpeningTokens: cfg.OpeningTokens,
		},
	)
	if _, err := app.VaultService.LoadSnapshot(ctx); err != nil {
		return err
	}
	app.Logger.Info("Services initialized.")

	// 6. Start Interest Scheduler
	if cfg.InterestInterval > 0 {
		schedCtx, cancel := context.WithCancel(context.Background())
		app.stopScheduler = cancel
		app.schedulerDone = make(chan struct{})
		go func() {
			defer close(app.schedulerDone)
			app.VaultService.RunInterestScheduler(schedCtx, cfg.InterestInterval)
		}()
	}

	// 7. Initialize HTTP Handlers and Router
	vaultHandler := handler.NewVaultHandler(app.VaultService, app.Logger)
	app.HTTPHandler = router.NewRouter(vaultHandler, app.Metrics.Handler(), app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown stops background work, persists the ledger and releases
// application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	defer util.SyncLogger()

	if app.stopScheduler != nil {
		app.stopScheduler()
		<-app.schedulerDone
	}

	var firstErr error
	if app.VaultService != nil {
		if err := app.VaultService.SaveSnapshot(ctx); err != nil {
			app.Logger.Error("Failed to save ledger snapshot", zap.Error(err))
			firstErr = err
		}
	}
	if app.Publisher != nil {
		if err := app.Publisher.Close(); err != nil {
			app.Logger.Error("Failed to close Kafka publisher", zap.Error(err))
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close database connection: %w", err)
			}
		} else {
			app.Logger.Info("Database connection closed.")
		}
	}
	if firstErr != nil {
		return firstErr
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
