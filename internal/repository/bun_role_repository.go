package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/idmgr/internal/db/models"
)

// BunRoleRepository implements RoleRepository using Bun ORM
type BunRoleRepository struct {
	db *bun.DB
}

// NewBunRoleRepository creates a new Bun-based role repository
func NewBunRoleRepository(db *bun.DB) *BunRoleRepository {
	return &BunRoleRepository{db: db}
}

// Create inserts a new role
func (r *BunRoleRepository) Create(ctx context.Context, role *models.Role) error {
	now := time.Now().UTC()
	role.NormalizedName = models.Normalize(role.Name)
	role.CreatedAt = now
	role.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(role).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create role %q: %w", role.Name, ErrDuplicate)
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// GetByID retrieves a role by ID
func (r *BunRoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	role := new(models.Role)
	err := r.db.NewSelect().
		Model(role).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("role %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get role by ID: %w", err)
	}
	return role, nil
}

// ExistsByName checks for another role with the same normalized name
func (r *BunRoleRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	q := r.db.NewSelect().
		Model((*models.Role)(nil)).
		Where("normalized_name = ?", models.Normalize(name))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	exists, err := q.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check role name: %w", err)
	}
	return exists, nil
}

// Update saves role fields
func (r *BunRoleRepository) Update(ctx context.Context, role *models.Role) error {
	role.NormalizedName = models.Normalize(role.Name)
	role.UpdatedAt = time.Now().UTC()

	res, err := r.db.NewUpdate().
		Model(role).
		Column("name", "normalized_name", "description", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update role %q: %w", role.Name, ErrDuplicate)
		}
		return fmt.Errorf("update role: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("role %s: %w", role.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a role. Missing roles are ignored.
func (r *BunRoleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.NewDelete().
		Model((*models.Role)(nil)).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	return nil
}

// List returns all roles ordered by name
func (r *BunRoleRepository) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	err := r.db.NewSelect().
		Model(&roles).
		Order("normalized_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}
