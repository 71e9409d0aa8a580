package identity

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/terraconstructs/idmgr/internal/db/bunx"
	"github.com/terraconstructs/idmgr/internal/db/models"
	"github.com/terraconstructs/idmgr/internal/logging"
	"github.com/terraconstructs/idmgr/internal/repository"
)

// SeedData is a document of users and roles to preload into a store.
type SeedData struct {
	Roles []SeedRole `mapstructure:"roles"`
	Users []SeedUser `mapstructure:"users"`
}

// SeedRole is a role entry of a seed document.
type SeedRole struct {
	Subject     string `mapstructure:"subject"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// SeedUser is a user entry of a seed document. Password is plain text and
// is hashed on load.
type SeedUser struct {
	Subject  string       `mapstructure:"subject"`
	Username string       `mapstructure:"username"`
	Password string       `mapstructure:"password"`
	Email    string       `mapstructure:"email"`
	Mobile   string       `mapstructure:"mobile"`
	Claims   []ClaimValue `mapstructure:"claims"`
}

// DecodeSeed decodes a generic document (parsed YAML or JSON) into SeedData.
// Unknown keys are rejected.
func DecodeSeed(raw map[string]any) (*SeedData, error) {
	var out SeedData
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &out,
	})
	if err != nil {
		return nil, fmt.Errorf("create seed decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &out, nil
}

// DemoSeed is the demo data set: roles and the users alice and bob.
func DemoSeed() map[string]any {
	return map[string]any{
		"roles": []map[string]any{
			{"name": "admin", "description": "Administrators"},
			{"name": "manager", "description": "Managers"},
			{"name": "employee", "description": "Employees"},
			{"name": "developer", "description": "Developers"},
		},
		"users": []map[string]any{
			{
				"subject":  "081d965f-1f84-4360-90e4-8f6deac7b9bc",
				"username": "alice",
				"password": "alice",
				"email":    "alice@email.com",
				"mobile":   "123",
				"claims": []map[string]any{
					{"type": ClaimName, "value": "Alice Smith"},
					{"type": RoleClaimType, "value": "admin"},
					{"type": RoleClaimType, "value": "employee"},
					{"type": RoleClaimType, "value": "manager"},
					{"type": "department", "value": "sales"},
				},
			},
			{
				"subject":  "5f292677-d3d2-4bf9-a6f8-e982d08e1306",
				"username": "bob",
				"password": "bob",
				"email":    "bob@email.com",
				"claims": []map[string]any{
					{"type": ClaimName, "value": "Bob Smith"},
					{"type": RoleClaimType, "value": "employee"},
					{"type": RoleClaimType, "value": "developer"},
					{"type": "department", "value": "IT"},
				},
			},
		},
	}
}

// SeedStats counts what Seed wrote.
type SeedStats struct {
	Roles int
	Users int
}

// Seed writes data into the repositories. Roles and users whose name is
// already taken are skipped, so seeding is repeatable. Entries without a
// subject get a fresh UUIDv7.
func Seed(ctx context.Context, users repository.UserRepository, roles repository.RoleRepository, data *SeedData, passwordCost int, logger *zap.Logger) (SeedStats, error) {
	logger = logging.OrNop(logger)
	var stats SeedStats

	for _, sr := range data.Roles {
		taken, err := roles.ExistsByName(ctx, sr.Name, "")
		if err != nil {
			return stats, fmt.Errorf("seed role %q: %w", sr.Name, err)
		}
		if taken {
			logger.Debug("seed role exists, skipping", zap.String("name", sr.Name))
			continue
		}
		role := &models.Role{ID: orNewID(sr.Subject), Name: sr.Name, Description: sr.Description}
		if err := roles.Create(ctx, role); err != nil {
			return stats, fmt.Errorf("seed role %q: %w", sr.Name, err)
		}
		stats.Roles++
	}

	for _, su := range data.Users {
		taken, err := users.ExistsByUsername(ctx, su.Username, "")
		if err != nil {
			return stats, fmt.Errorf("seed user %q: %w", su.Username, err)
		}
		if taken {
			logger.Debug("seed user exists, skipping", zap.String("username", su.Username))
			continue
		}

		user := &models.User{
			ID:       orNewID(su.Subject),
			Username: su.Username,
			Email:    su.Email,
			Mobile:   su.Mobile,
		}
		if su.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(su.Password), passwordCost)
			if err != nil {
				return stats, fmt.Errorf("seed user %q: hash password: %w", su.Username, err)
			}
			user.PasswordHash = string(hash)
		}
		for _, c := range su.Claims {
			user.Claims.Add(c.Type, c.Value)
		}

		if err := users.Create(ctx, user); err != nil {
			return stats, fmt.Errorf("seed user %q: %w", su.Username, err)
		}
		stats.Users++
	}

	logger.Info("seed complete", zap.Int("roles", stats.Roles), zap.Int("users", stats.Users))
	return stats, nil
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return bunx.NewUUIDv7()
}
