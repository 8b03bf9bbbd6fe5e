// Package postgres implements the storage.Backend interface on PostgreSQL by
// embedding the GORM backend.
package postgres

import (
	"fmt"

	"github.com/OCAP2/warcore/internal/config"
	"github.com/OCAP2/warcore/internal/database"
	gormstorage "github.com/OCAP2/warcore/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Backend is the Postgres catalogue.
type Backend struct {
	*gormstorage.Backend
}

// New connects to Postgres and validates the connection.
func New(cfg config.DatabaseConfig, log zerolog.Logger) (*Backend, error) {
	db, err := database.GetPostgresDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connected to Postgres catalogue")
	return &Backend{Backend: gormstorage.New(db, log)}, nil
}
