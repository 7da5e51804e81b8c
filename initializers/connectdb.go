package initializers

import (
	"fmt"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Itish41/ndareview/logger"
)

// ConnectDB opens the Postgres connection used by the document store.
func ConnectDB(cfg Config, log *logger.Logger) (*gorm.DB, error) {
	log.Info("Connecting to database")

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("env variable DIRECT_URL is empty")
	}

	pgConfig := postgres.Config{
		PreferSimpleProtocol: true, // Supabase pooler rejects implicit prepared statements
		DriverName:           "postgres",
		DSN:                  cfg.DatabaseURL,
	}

	gormLevel := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		gormLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		PrepareStmt:          false,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Default.LogMode(gormLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	log.Info("Database connection successful")
	return db, nil
}
