package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopsync/backend/internal/infrastructure/config"
	"github.com/shopsync/backend/internal/infrastructure/logger"
	"github.com/shopsync/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	_ = godotenv.Load()

	// Initialize logger
	logCfg := logger.ConfigForEnvironment(os.Getenv("SHOPSYNC_APP_ENV"))
	logCfg.Level = logLevel
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	log.Info("Database CLI started",
		zap.String("command", command),
		zap.String("driver", cfg.Database.Driver),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel),
		logger.WithSlowThreshold(cfg.Database.SlowQueryThreshold))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	switch command {
	case "up":
		if err := db.Migrate(); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		log.Info("Schema is up to date")

	case "status":
		if err := db.Ping(); err != nil {
			log.Fatal("Database unreachable", zap.Error(err))
		}
		stats, err := db.Stats()
		if err != nil {
			log.Fatal("Failed to read pool stats", zap.Error(err))
		}
		log.Info("Database reachable",
			zap.Int("open_connections", stats.OpenConnections),
			zap.Int("in_use", stats.InUse),
			zap.Int("idle", stats.Idle),
		)

	case "shops":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		shops, err := persistence.NewGormCredentialStore(db.DB).ListTenants(ctx)
		if err != nil {
			log.Fatal("Failed to list shops", zap.Error(err))
		}
		log.Info("Installed shops", zap.Int("count", len(shops)))
		for _, shop := range shops {
			fmt.Println("  -", shop)
		}

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Catalog sync database tool

Usage:
  migrate [flags] <command>

Commands:
  up        Create or update the credential and settings tables
  status    Check connectivity and print pool statistics
  shops     List shops with a live access token

Flags:
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  SHOPSYNC_DATABASE_DRIVER, SHOPSYNC_DATABASE_HOST, SHOPSYNC_DATABASE_SQLITE_PATH, ...`)
}
