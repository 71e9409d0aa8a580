package repository

import (
	"context"
	"errors"

	"github.com/terraconstructs/idmgr/internal/db/models"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write would violate username or role
	// name uniqueness.
	ErrDuplicate = errors.New("already exists")
)

// UserRepository persists users together with their claims.
type UserRepository interface {
	// Create inserts the user and its claims. Returns ErrDuplicate if the
	// normalized username is taken.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// ExistsByUsername reports whether another user (ID != excludeID) has the
	// same username, ignoring case.
	ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error)
	// Update saves the user's fields and replaces its claims.
	Update(ctx context.Context, user *models.User) error
	// Delete removes the user. Deleting a missing user is not an error.
	Delete(ctx context.Context, id string) error
	// List returns every user ordered by normalized username.
	List(ctx context.Context) ([]models.User, error)
}

// RoleRepository persists roles.
type RoleRepository interface {
	Create(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, id string) (*models.Role, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id string) error
	// List returns every role ordered by normalized name.
	List(ctx context.Context) ([]models.Role, error)
}
