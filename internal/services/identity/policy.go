package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/terraconstructs/idmgr/internal/db/models"
	"github.com/terraconstructs/idmgr/internal/metadata"
	"github.com/terraconstructs/idmgr/internal/repository"
	"github.com/terraconstructs/idmgr/internal/result"
)

// Policy holds the store-specific rules applied on top of metadata
// validation, and resolves conventional properties (those without a binding).
//
// The Get/Set methods are only called for conventional properties and must
// return metadata.ErrInvalidPropertyType for types they do not handle.
type Policy interface {
	// ValidateUserProperty returns extra validation errors. user is nil during create.
	ValidateUserProperty(ctx context.Context, user *models.User, typ, value string) ([]string, error)
	ValidateRoleProperty(ctx context.Context, role *models.Role, typ, value string) ([]string, error)

	GetUserProperty(ctx context.Context, user *models.User, typ string) (*string, error)
	SetUserProperty(ctx context.Context, user *models.User, typ, value string) (result.Result, error)
	GetRoleProperty(ctx context.Context, role *models.Role, typ string) (*string, error)
	SetRoleProperty(ctx context.Context, role *models.Role, typ, value string) (result.Result, error)
}

const (
	MsgUsernameTaken = "That Username is already in use"
	MsgRoleNameTaken = "That Role name is already in use"
	MsgPasswordShort = "Password must have at least %d characters"
)

// StorePolicy is the policy for the bundled stores. It enforces unique
// usernames and role names, a minimum password length, and backs the
// role.admin and gravatar properties with user claims.
type StorePolicy struct {
	users             repository.UserRepository
	roles             repository.RoleRepository
	roleClaimType     string
	minPasswordLength int
}

// NewStorePolicy creates a policy that checks names against the given stores.
// The minimum password length defaults to 3.
func NewStorePolicy(users repository.UserRepository, roles repository.RoleRepository) *StorePolicy {
	return &StorePolicy{
		users:             users,
		roles:             roles,
		roleClaimType:     RoleClaimType,
		minPasswordLength: 3,
	}
}

// WithRoleClaimType sets the claim type toggled by role.admin.
func (p *StorePolicy) WithRoleClaimType(typ string) *StorePolicy {
	p.roleClaimType = typ
	return p
}

// WithMinPasswordLength sets the minimum password length in characters.
func (p *StorePolicy) WithMinPasswordLength(n int) *StorePolicy {
	p.minPasswordLength = n
	return p
}

func (p *StorePolicy) ValidateUserProperty(ctx context.Context, user *models.User, typ, value string) ([]string, error) {
	switch typ {
	case PropUsername:
		taken, err := p.users.ExistsByUsername(ctx, value, idOf(user))
		if err != nil {
			return nil, err
		}
		if taken {
			return []string{MsgUsernameTaken}, nil
		}
	case PropPassword:
		if len([]rune(value)) < p.minPasswordLength {
			return []string{fmt.Sprintf(MsgPasswordShort, p.minPasswordLength)}, nil
		}
	}
	return nil, nil
}

func (p *StorePolicy) ValidateRoleProperty(ctx context.Context, role *models.Role, typ, value string) ([]string, error) {
	if typ != PropRoleName {
		return nil, nil
	}
	excludeID := ""
	if role != nil {
		excludeID = role.ID
	}
	taken, err := p.roles.ExistsByName(ctx, value, excludeID)
	if err != nil {
		return nil, err
	}
	if taken {
		return []string{MsgRoleNameTaken}, nil
	}
	return nil, nil
}

func (p *StorePolicy) GetUserProperty(_ context.Context, user *models.User, typ string) (*string, error) {
	switch typ {
	case PropRoleAdmin:
		if p.roleClaimType == "" {
			break
		}
		v := metadata.FormatBool(user.Claims.Has(p.roleClaimType, AdminRole))
		return &v, nil
	case PropGravatar:
		if v := user.Claims.Value(ClaimGravatar); v != "" {
			return &v, nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("user property %q: %w", typ, metadata.ErrInvalidPropertyType)
}

func (p *StorePolicy) SetUserProperty(_ context.Context, user *models.User, typ, value string) (result.Result, error) {
	switch typ {
	case PropRoleAdmin:
		if p.roleClaimType == "" {
			break
		}
		isAdmin, ok := false, true
		if strings.TrimSpace(value) != "" {
			isAdmin, ok = metadata.ParseBool(value)
		}
		if !ok {
			return result.Failure(metadata.MsgConversionFailed), nil
		}
		if isAdmin {
			user.Claims.Add(p.roleClaimType, AdminRole)
		} else {
			user.Claims.Remove(p.roleClaimType, AdminRole)
		}
		return result.Success(), nil
	case PropGravatar:
		user.Claims.SetValue(ClaimGravatar, strings.TrimSpace(value))
		return result.Success(), nil
	}
	return result.Result{}, fmt.Errorf("user property %q: %w", typ, metadata.ErrInvalidPropertyType)
}

func (p *StorePolicy) GetRoleProperty(_ context.Context, _ *models.Role, typ string) (*string, error) {
	return nil, fmt.Errorf("role property %q: %w", typ, metadata.ErrInvalidPropertyType)
}

func (p *StorePolicy) SetRoleProperty(_ context.Context, _ *models.Role, typ, _ string) (result.Result, error) {
	return result.Result{}, fmt.Errorf("role property %q: %w", typ, metadata.ErrInvalidPropertyType)
}

func idOf(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
