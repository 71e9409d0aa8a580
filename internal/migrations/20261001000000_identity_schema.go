package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/idmgr/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261001000000, down_20261001000000)
}

// up_20261001000000 creates the users, roles and user_claims tables
func up_20261001000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating users table...")
	if _, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating roles table...")
	if _, err := db.NewCreateTable().
		Model((*models.Role)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create roles table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating user_claims table...")
	if _, err := db.NewCreateTable().
		Model((*models.UserClaim)(nil)).
		IfNotExists().
		ForeignKey(`(user_id) REFERENCES users(id) ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create user_claims table: %w", err)
	}

	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_user_claims_user ON user_claims(user_id, position)`); err != nil {
		return fmt.Errorf("failed to create user_claims user index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20261001000000 drops the identity tables in reverse order
func down_20261001000000(ctx context.Context, db *bun.DB) error {
	for _, table := range []string{"user_claims", "roles", "users"} {
		fmt.Printf(" [down] dropping %s table...", table)
		stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
		if IsPostgreSQL(db) {
			stmt += " CASCADE"
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
