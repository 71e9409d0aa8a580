package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261008000000, down_20261008000000)
}

// up_20261008000000 indexes claims by (type, value) for role membership and
// display-name lookups
func up_20261008000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating user_claims type/value index...")
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_user_claims_type_value ON user_claims(type, value)`); err != nil {
		return fmt.Errorf("failed to create user_claims type/value index: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

func down_20261008000000(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, `DROP INDEX IF EXISTS idx_user_claims_type_value`); err != nil {
		return fmt.Errorf("failed to drop user_claims type/value index: %w", err)
	}
	return nil
}
