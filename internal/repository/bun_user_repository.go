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

// BunUserRepository implements UserRepository using Bun ORM
type BunUserRepository struct {
	db *bun.DB
}

// NewBunUserRepository creates a new Bun-based user repository
func NewBunUserRepository(db *bun.DB) *BunUserRepository {
	return &BunUserRepository{db: db}
}

// Create inserts a new user and its claims in one transaction
func (r *BunUserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.NormalizedUsername = models.Normalize(user.Username)
	user.CreatedAt = now
	user.UpdatedAt = now

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
			return err
		}
		return insertClaims(ctx, tx, user)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user %q: %w", user.Username, ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user and its claims by ID
func (r *BunUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Relation("Claims", orderClaims).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get user by ID: %w", err)
	}
	return user, nil
}

// ExistsByUsername checks for another user with the same normalized username
func (r *BunUserRepository) ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error) {
	q := r.db.NewSelect().
		Model((*models.User)(nil)).
		Where("normalized_username = ?", models.Normalize(username))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	exists, err := q.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// Update saves user fields and replaces the user's claims
func (r *BunUserRepository) Update(ctx context.Context, user *models.User) error {
	user.NormalizedUsername = models.Normalize(user.Username)
	user.UpdatedAt = time.Now().UTC()

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(user).
			Column("username", "normalized_username", "password_hash", "email", "mobile", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			return fmt.Errorf("user %s: %w", user.ID, ErrNotFound)
		}

		if _, err := tx.NewDelete().
			Model((*models.UserClaim)(nil)).
			Where("user_id = ?", user.ID).
			Exec(ctx); err != nil {
			return err
		}
		return insertClaims(ctx, tx, user)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return err
		case isUniqueViolation(err):
			return fmt.Errorf("update user %q: %w", user.Username, ErrDuplicate)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Delete removes a user and its claims. Missing users are ignored.
func (r *BunUserRepository) Delete(ctx context.Context, id string) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.UserClaim)(nil)).
			Where("user_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.User)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// List returns all users with their claims
func (r *BunUserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.NewSelect().
		Model(&users).
		Relation("Claims", orderClaims).
		Order("u.normalized_username ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func orderClaims(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("uc.position ASC")
}

func insertClaims(ctx context.Context, tx bun.Tx, user *models.User) error {
	if len(user.Claims) == 0 {
		return nil
	}
	for i := range user.Claims {
		user.Claims[i].ID = 0
		user.Claims[i].UserID = user.ID
		user.Claims[i].Position = i
	}
	_, err := tx.NewInsert().Model(&user.Claims).Exec(ctx)
	return err
}
