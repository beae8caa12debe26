package store

import (
	"fmt"

	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/database"
)

// BackendDeps carries the collaborators some backends need.
type BackendDeps struct {
	// Runner executes remount commands for the mounted backend.
	Runner CommandRunner

	// DB is the migrated database for the sqlite backend.
	DB *database.DB
}

// NewBackend builds the backend selected by cfg.Store.Backend.
//
// Returns:
//   - ErrUnknownBackend for an unrecognised kind, or when the kind needs a
//     dependency that deps does not provide
func NewBackend(cfg *config.Config, deps BackendDeps) (Backend, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		return NewMemoryBackend(), nil
	case config.StoreBackendFile:
		return NewFileBackend(cfg.Store.Path), nil
	case config.StoreBackendMounted:
		if deps.Runner == nil {
			return nil, fmt.Errorf("%w: mounted backend needs a command runner", ErrUnknownBackend)
		}
		return NewMountedBackend(MountedConfig{
			Path:      cfg.Store.Path,
			ReadWrite: cfg.Store.Mount.ReadWrite,
			ReadOnly:  cfg.Store.Mount.ReadOnly,
			Timeout:   cfg.MountTimeout(),
		}, deps.Runner), nil
	case config.StoreBackendSQLite:
		if deps.DB == nil {
			return nil, fmt.Errorf("%w: sqlite backend needs a database", ErrUnknownBackend)
		}
		return NewSQLiteBackend(deps.DB), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Store.Backend)
	}
}
