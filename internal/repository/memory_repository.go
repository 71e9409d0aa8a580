package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/terraconstructs/idmgr/internal/db/models"
)

// MemoryUserRepository is an in-process UserRepository. Entities are copied on
// the way in and out, so callers never share state with the store.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*models.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.NormalizedUsername = models.Normalize(user.Username)
	user.CreatedAt = now
	user.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok || r.usernameTaken(user.NormalizedUsername, "") {
		return fmt.Errorf("create user %q: %w", user.Username, ErrDuplicate)
	}
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u.Clone(), nil
}

func (r *MemoryUserRepository) ExistsByUsername(_ context.Context, username, excludeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.usernameTaken(models.Normalize(username), excludeID), nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *models.User) error {
	user.NormalizedUsername = models.Normalize(user.Username)
	user.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user %s: %w", user.ID, ErrNotFound)
	}
	if r.usernameTaken(user.NormalizedUsername, user.ID) {
		return fmt.Errorf("update user %q: %w", user.Username, ErrDuplicate)
	}
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) List(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].NormalizedUsername < out[j].NormalizedUsername
	})
	return out, nil
}

// usernameTaken must be called with r.mu held.
func (r *MemoryUserRepository) usernameTaken(normalized, excludeID string) bool {
	for id, u := range r.users {
		if id != excludeID && u.NormalizedUsername == normalized {
			return true
		}
	}
	return false
}

// MemoryRoleRepository is an in-process RoleRepository.
type MemoryRoleRepository struct {
	mu    sync.RWMutex
	roles map[string]*models.Role
}

func NewMemoryRoleRepository() *MemoryRoleRepository {
	return &MemoryRoleRepository{roles: make(map[string]*models.Role)}
}

func (r *MemoryRoleRepository) Create(_ context.Context, role *models.Role) error {
	now := time.Now().UTC()
	role.NormalizedName = models.Normalize(role.Name)
	role.CreatedAt = now
	role.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[role.ID]; ok || r.nameTaken(role.NormalizedName, "") {
		return fmt.Errorf("create role %q: %w", role.Name, ErrDuplicate)
	}
	r.roles[role.ID] = role.Clone()
	return nil
}

func (r *MemoryRoleRepository) GetByID(_ context.Context, id string) (*models.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.roles[id]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", id, ErrNotFound)
	}
	return role.Clone(), nil
}

func (r *MemoryRoleRepository) ExistsByName(_ context.Context, name, excludeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nameTaken(models.Normalize(name), excludeID), nil
}

func (r *MemoryRoleRepository) Update(_ context.Context, role *models.Role) error {
	role.NormalizedName = models.Normalize(role.Name)
	role.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[role.ID]; !ok {
		return fmt.Errorf("role %s: %w", role.ID, ErrNotFound)
	}
	if r.nameTaken(role.NormalizedName, role.ID) {
		return fmt.Errorf("update role %q: %w", role.Name, ErrDuplicate)
	}
	r.roles[role.ID] = role.Clone()
	return nil
}

func (r *MemoryRoleRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles, id)
	return nil
}

func (r *MemoryRoleRepository) List(_ context.Context) ([]models.Role, error) {
	r.mu.RLock()
	out := make([]models.Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, *role.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].NormalizedName < out[j].NormalizedName
	})
	return out, nil
}

// nameTaken must be called with r.mu held.
func (r *MemoryRoleRepository) nameTaken(normalized, excludeID string) bool {
	for id, role := range r.roles {
		if id != excludeID && role.NormalizedName == normalized {
			return true
		}
	}
	return false
}
