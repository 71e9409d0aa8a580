package migrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"

	"github.com/terraconstructs/idmgr/internal/db/bunx"
)

func TestMigrations_UpAndDown(t *testing.T) {
	ctx := context.Background()
	db, err := bunx.NewDB(ctx, ":memory:", bunx.Options{})
	require.NoError(t, err)
	defer bunx.Close(db)

	assert.True(t, IsSQLite(db))
	assert.False(t, IsPostgreSQL(db))

	migrator := migrate.NewMigrator(db, Migrations)
	require.NoError(t, migrator.Init(ctx))

	group, err := migrator.Migrate(ctx)
	require.NoError(t, err)
	assert.NotZero(t, group.ID)
	assert.Len(t, group.Migrations, 2)

	for _, table := range []string{"users", "roles", "user_claims"} {
		var n int
		err := db.NewSelect().
			TableExpr("sqlite_master").
			ColumnExpr("count(*)").
			Where("type = 'table' AND name = ?", table).
			Scan(ctx, &n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}

	group, err = migrator.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, group.ID, "second run applies nothing")

	_, err = migrator.Rollback(ctx)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.NewSelect().
		TableExpr("sqlite_master").
		ColumnExpr("count(*)").
		Where("type = 'table' AND name = 'users'").
		Scan(ctx, &n))
	assert.Zero(t, n)
}
