package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL   string
	Port          string
	IsProduction  bool
	EnableDBCheck bool

	JWTSecret         string
	JWTExpiryDuration time.Duration
	JWTIssuer         string

	// LockTTL is how long an advisory entity lock lives before an abandoned
	// session's lock is treated as free. A policy parameter: the optimistic
	// version check remains the final guard against lost updates.
	LockTTL time.Duration

	// UndoWindow is how long a save's undo token stays redeemable.
	UndoWindow time.Duration

	// RateLimit is a ulule/limiter formatted rate, e.g. "300-M".
	RateLimit string

	// ReconSchedule is the cron spec for the nightly reconciliation run.
	// Empty disables the scheduled job.
	ReconSchedule string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("JWT_EXPIRY_DURATION", "8h")
	viper.SetDefault("JWT_ISSUER", "cms-backend")
	viper.SetDefault("LOCK_TTL", "15m")
	viper.SetDefault("UNDO_WINDOW", "30s")
	viper.SetDefault("RATE_LIMIT", "300-M")
	viper.SetDefault("RECON_SCHEDULE", "0 3 * * *")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if !cfg.IsProduction && cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET not set. Using default insecure key.")
	}
	cfg.JWTIssuer = viper.GetString("JWT_ISSUER")

	jwtExpiry, err := time.ParseDuration(viper.GetString("JWT_EXPIRY_DURATION"))
	if err != nil {
		jwtExpiry = 8 * time.Hour
		log.Printf("Warning: Invalid JWT_EXPIRY_DURATION. Defaulting to %s.\n", jwtExpiry)
	}
	cfg.JWTExpiryDuration = jwtExpiry

	lockTTL, err := time.ParseDuration(viper.GetString("LOCK_TTL"))
	if err != nil {
		lockTTL = 15 * time.Minute
		log.Printf("Warning: Invalid LOCK_TTL. Defaulting to %s.\n", lockTTL)
	}
	cfg.LockTTL = lockTTL

	undoWindow, err := time.ParseDuration(viper.GetString("UNDO_WINDOW"))
	if err != nil {
		undoWindow = 30 * time.Second
		log.Printf("Warning: Invalid UNDO_WINDOW. Defaulting to %s.\n", undoWindow)
	}
	cfg.UndoWindow = undoWindow

	cfg.RateLimit = viper.GetString("RATE_LIMIT")
	cfg.ReconSchedule = viper.GetString("RECON_SCHEDULE")

	return cfg, nil
}
