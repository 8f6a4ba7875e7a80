package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/handlers"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/jobs"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/middleware"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/platform/config"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/repositories/database/pgsql"
	"github.com/jakeross838/Construction-Management-Software-sub001/pkg/database"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection pool (for application use)
	dbPool, err := database.NewPgxPool(context.Background(), cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
		os.Exit(1)
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery, CORS, rate limiting)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.Default())
	if rate, err := limiter.NewRateFromFormatted(cfg.RateLimit); err == nil {
		r.Use(middleware.RateLimit(limiter.New(memory.NewStore(), rate)))
	} else {
		logger.Warn("Invalid rate limit format, rate limiting disabled", slog.String("rate", cfg.RateLimit))
	}

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	container := buildServices(dbPool, cfg)
	handlers.RegisterRoutes(r, cfg, container)

	reconJob := jobs.NewReconciliationJob(container.Reconciliation, logger)
	if err := reconJob.Start(cfg.ReconSchedule); err != nil {
		logger.Error("Failed to start reconciliation schedule", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer reconJob.Stop()

	logger.Info("Server starting", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildServices wires repositories into the service container the handlers
// are registered against.
func buildServices(dbPool *pgxpool.Pool, cfg *config.Config) *portssvc.ServiceContainer {
	repos := pgsql.NewRepositoryProvider(dbPool)

	fundingService := services.NewFundingService(repos.Funding)
	return &portssvc.ServiceContainer{
		Invoice:        services.NewInvoiceService(repos.Invoice, repos.Draw, repos.Activity, fundingService, cfg.UndoWindow),
		Funding:        fundingService,
		Lock:           services.NewLockService(repos.Lock, repos.User, cfg.LockTTL),
		Split:          services.NewSplitService(repos.Invoice, repos.Activity),
		Reconciliation: services.NewReconciliationService(repos.Invoice, repos.Draw, repos.Budget, repos.Activity),
		User:           services.NewUserService(repos.User),
		Auth:           services.NewAuthService(repos.User, cfg.JWTSecret, cfg.JWTExpiryDuration, cfg.JWTIssuer),
	}
}

// runMigrations applies all pending up migrations from the migrations
// directory using a standalone database/sql connection.
func runMigrations(databaseURL string, logger *slog.Logger) error {
	logger.Info("Running database migrations...")
	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		logger.Error("Failed to open database connection for migrations", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		logger.Error("Failed to ping database for migrations", slog.String("error", err.Error()))
		return err
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		logger.Error("Could not create postgres driver instance for migrations", slog.String("error", err.Error()))
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		logger.Error("Could not create migrate instance", slog.String("error", err.Error()))
		return err
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		logger.Error("Failed to apply migrations", slog.String("error", err.Error()))
		return err
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		logger.Error("Migration source error", slog.String("error", sourceErr.Error()))
		return sourceErr
	}
	if dbErr != nil {
		logger.Error("Migration database error", slog.String("error", dbErr.Error()))
		return dbErr
	}

	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}
