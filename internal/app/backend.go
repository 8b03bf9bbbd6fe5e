package app

import (
	"errors"
	"fmt"

	"github.com/OCAP2/warcore/internal/config"
	"github.com/OCAP2/warcore/internal/database"
	"github.com/OCAP2/warcore/internal/storage"
	gormstorage "github.com/OCAP2/warcore/internal/storage/gorm"
	pgstorage "github.com/OCAP2/warcore/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/warcore/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// Storage backend types accepted in storage.type.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendAuto     = "auto" // Postgres, falling back to SQLite
)

// ErrUnknownBackend is returned for an unrecognized storage.type.
var ErrUnknownBackend = errors.New("unknown storage backend")

// NewBackend creates the catalogue backend selected by cfg.Type. The backend
// is not initialized.
func NewBackend(cfg config.StorageConfig, pg config.DatabaseConfig, log zerolog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case BackendSQLite, "":
		backend, err := sqlitestorage.New(cfg.SQLite, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		log.Info().Str("path", cfg.SQLite.Path).Msg("SQLite storage backend created")
		return backend, nil

	case BackendPostgres:
		backend, err := pgstorage.New(pg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Postgres backend: %w", err)
		}
		return backend, nil

	case BackendAuto:
		m := database.NewManager(log)
		if err := m.Connect(pg, cfg.SQLite.Path); err != nil {
			return nil, err
		}
		return gormstorage.New(m.DB, log), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Type)
	}
}
