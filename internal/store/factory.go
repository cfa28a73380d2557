package store

import (
	"context"
	"fmt"

	"github.com/edualytics/student-intel/pkg/config"
	"github.com/edualytics/student-intel/pkg/database"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
)

// FromConfig builds the configured store backend. The returned closer
// releases backend resources and is safe to call on every path.
func FromConfig(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Backend {
	case config.StoreBackendExcel:
		return NewExcelStore(cfg.Store.WorkbookPath), noop, nil
	case config.StoreBackendMemory:
		return NewMemoryStore(), noop, nil
	case config.StoreBackendPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		st := NewPostgresStore(db)
		if err := st.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("migrate store: %w", err)
		}
		return st, db.Close, nil
	default:
		return nil, noop, appErrors.Clone(appErrors.ErrUnsupportedBackend,
			fmt.Sprintf("unsupported store backend: %s", cfg.Store.Backend))
	}
}
