package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// User is an administrable account. Username uniqueness is enforced on
// NormalizedUsername, which repositories derive from Username on every write.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                 string    `bun:"id,pk"`
	Username           string    `bun:"username,notnull"`
	NormalizedUsername string    `bun:"normalized_username,notnull,unique"`
	PasswordHash       string    `bun:"password_hash"` // bcrypt
	Email              string    `bun:"email"`
	Mobile             string    `bun:"mobile"`
	CreatedAt          time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,notnull,default:current_timestamp"`

	Claims Claims `bun:"rel:has-many,join:id=user_id"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Claims = u.Claims.Clone()
	return &c
}

// Role is a named group a user can be a member of via a role claim.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID             string    `bun:"id,pk"`
	Name           string    `bun:"name,notnull"`
	NormalizedName string    `bun:"normalized_name,notnull,unique"`
	Description    string    `bun:"description"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Clone returns a shallow copy of r.
func (r *Role) Clone() *Role {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Normalize returns the case-insensitive key used for username and role name uniqueness.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
