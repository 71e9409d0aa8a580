package models

import (
	"slices"

	"github.com/uptrace/bun"
)

// UserClaim is a (type, value) pair attached to a user. Position keeps claims
// in insertion order when read back from the database.
type UserClaim struct {
	bun.BaseModel `bun:"table:user_claims,alias:uc"`

	ID       int64  `bun:"id,pk,autoincrement"`
	UserID   string `bun:"user_id,notnull"`
	Position int    `bun:"position,notnull"`
	Type     string `bun:"type,notnull"`
	Value    string `bun:"value,notnull"`
}

// Claims is an ordered claim collection.
type Claims []UserClaim

// Has reports whether a claim with exactly this type and value exists.
func (c Claims) Has(typ, value string) bool {
	return slices.ContainsFunc(c, func(uc UserClaim) bool {
		return uc.Type == typ && uc.Value == value
	})
}

// Value returns the value of the first claim of typ, or "".
func (c Claims) Value(typ string) string {
	for _, uc := range c {
		if uc.Type == typ {
			return uc.Value
		}
	}
	return ""
}

// Values returns every value of claims of typ.
func (c Claims) Values(typ string) []string {
	var out []string
	for _, uc := range c {
		if uc.Type == typ {
			out = append(out, uc.Value)
		}
	}
	return out
}

// Add appends the claim unless an identical one exists.
func (c *Claims) Add(typ, value string) {
	if c.Has(typ, value) {
		return
	}
	*c = append(*c, UserClaim{Type: typ, Value: value})
}

// Remove deletes every claim with exactly this type and value.
func (c *Claims) Remove(typ, value string) {
	*c = slices.DeleteFunc(*c, func(uc UserClaim) bool {
		return uc.Type == typ && uc.Value == value
	})
}

// RemoveType deletes every claim of typ.
func (c *Claims) RemoveType(typ string) {
	*c = slices.DeleteFunc(*c, func(uc UserClaim) bool { return uc.Type == typ })
}

// SetValue replaces all claims of typ with a single claim holding value.
// An empty value only removes.
func (c *Claims) SetValue(typ, value string) {
	c.RemoveType(typ)
	if value != "" {
		*c = append(*c, UserClaim{Type: typ, Value: value})
	}
}

func (c Claims) Clone() Claims {
	if c == nil {
		return nil
	}
	return slices.Clone(c)
}
