package cmd

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/terraconstructs/idmgr/internal/config"
	"github.com/terraconstructs/idmgr/internal/db/bunx"
	"github.com/terraconstructs/idmgr/internal/migrations"
	"github.com/terraconstructs/idmgr/internal/repository"
)

// identityStore is the pair of repositories selected by configuration.
type identityStore struct {
	users repository.UserRepository
	roles repository.RoleRepository
	db    *bun.DB
}

func (s *identityStore) Close() {
	if s.db != nil {
		if err := bunx.Close(s.db); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}
}

func openStore(ctx context.Context) (*identityStore, error) {
	switch cfg.Store {
	case config.StoreSQL:
		db, err := openDB(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to database", zap.String("type", string(bunx.DetectDatabaseType(cfg.DatabaseURL))))
		return &identityStore{
			users: repository.NewBunUserRepository(db),
			roles: repository.NewBunRoleRepository(db),
			db:    db,
		}, nil
	default:
		logger.Info("using in-memory identity store")
		return &identityStore{
			users: repository.NewMemoryUserRepository(),
			roles: repository.NewMemoryRoleRepository(),
		}, nil
	}
}

func openDB(ctx context.Context) (*bun.DB, error) {
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL, bunx.Options{MaxOpenConns: cfg.MaxDBConnections})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// migrateDB initializes the migration tables and applies pending migrations
// under the migration lock.
func migrateDB(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}

	if err := migrator.Lock(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			logger.Warn("failed to release migration lock", zap.Error(err))
		}
	}()

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return group, nil
}
