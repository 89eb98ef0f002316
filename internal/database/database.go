package database

import (
	"fmt"
	"time"

	"watchparty/backend/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the Postgres connection and runs migrations.
func Connect(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		&log.Logger,
		logger.Config{
			SlowThreshold:             200 * time.Millisecond, // Slow SQL threshold
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		// Unique violations come back as gorm.ErrDuplicatedKey.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info().Str("module", "database").Msg("database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info().Str("module", "database").Msg("database migrated successfully")
	return db, nil
}

// Migrate creates or updates the tables backing the party directory.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Party{}, &models.Membership{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	log.Info().Str("module", "database").Msg("closing PostgreSQL database connection")
	if err := sqlDB.Close(); err != nil {
		log.Error().Err(err).Str("module", "database").Msg("failed to close database")
	}
}
