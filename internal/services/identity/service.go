package identity

import (
	"context"

	"github.com/terraconstructs/idmgr/internal/metadata"
	"github.com/terraconstructs/idmgr/internal/result"
	"github.com/terraconstructs/idmgr/internal/validation"
)

// PropertyValue is a submitted or displayed property value.
type PropertyValue = validation.PropertyValue

// ClaimValue is a user claim as exposed to administrators.
type ClaimValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// UserSummary is a user as listed by QueryUsers.
type UserSummary struct {
	Subject  string `json:"subject"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// UserDetail is a user with every update property resolved. A nil Value
// means the property is unset or hidden (passwords).
type UserDetail struct {
	UserSummary
	Properties []DisplayValue `json:"properties"`
	Claims     []ClaimValue   `json:"claims"`
}

// RoleSummary is a role as listed by QueryRoles.
type RoleSummary struct {
	Subject     string `json:"subject"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RoleDetail is a role with every update property resolved.
type RoleDetail struct {
	RoleSummary
	Properties []DisplayValue `json:"properties"`
}

// DisplayValue is a resolved property value.
type DisplayValue struct {
	Type  string  `json:"type"`
	Value *string `json:"value"`
}

// CreateResult identifies a newly created entity.
type CreateResult struct {
	Subject string `json:"subject"`
}

// Service is the administrative surface over users and roles. Each method
// returns a Result for user-facing failures and an error for faults.
type Service interface {
	GetMetadata(ctx context.Context) (*metadata.Metadata, error)

	QueryUsers(ctx context.Context, filter string, start, count int) (result.DataResult[result.QueryResult[UserSummary]], error)
	GetUser(ctx context.Context, subject string) (result.DataResult[UserDetail], error)
	CreateUser(ctx context.Context, properties []PropertyValue) (result.DataResult[CreateResult], error)
	DeleteUser(ctx context.Context, subject string) (result.Result, error)
	SetUserProperty(ctx context.Context, subject, typ, value string) (result.Result, error)
	AddUserClaim(ctx context.Context, subject, typ, value string) (result.Result, error)
	RemoveUserClaim(ctx context.Context, subject, typ, value string) (result.Result, error)

	QueryRoles(ctx context.Context, filter string, start, count int) (result.DataResult[result.QueryResult[RoleSummary]], error)
	GetRole(ctx context.Context, subject string) (result.DataResult[RoleDetail], error)
	CreateRole(ctx context.Context, properties []PropertyValue) (result.DataResult[CreateResult], error)
	DeleteRole(ctx context.Context, subject string) (result.Result, error)
	SetRoleProperty(ctx context.Context, subject, typ, value string) (result.Result, error)
}

// User-facing failure messages.
const (
	MsgSubjectRequired    = "Subject is required"
	MsgClaimTypeRequired  = "Claim type is required"
	MsgClaimValueRequired = "Claim value is required"
	MsgNoUserFound        = "No user found"
	MsgNoRoleFound        = "No role found"
	MsgUsernameInUse      = "Username already in use."
	MsgRoleNameInUse      = "Role name already in use."
)
