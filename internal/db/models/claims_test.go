package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pairs(c Claims) [][2]string {
	out := make([][2]string, 0, len(c))
	for _, uc := range c {
		out = append(out, [2]string{uc.Type, uc.Value})
	}
	return out
}

func TestClaims_AddIsIdempotent(t *testing.T) {
	var c Claims
	c.Add("role", "admin")
	c.Add("role", "admin")
	c.Add("role", "dev")

	assert.Equal(t, [][2]string{{"role", "admin"}, {"role", "dev"}}, pairs(c))
	assert.True(t, c.Has("role", "admin"))
	assert.False(t, c.Has("role", "Admin"))
}

func TestClaims_RemoveExactMatches(t *testing.T) {
	c := Claims{
		{Type: "role", Value: "admin"},
		{Type: "role", Value: "dev"},
		{Type: "role", Value: "admin"},
	}
	c.Remove("role", "admin")
	assert.Equal(t, [][2]string{{"role", "dev"}}, pairs(c))

	c.Remove("role", "missing")
	assert.Len(t, c, 1)
}

func TestClaims_SetValue(t *testing.T) {
	c := Claims{
		{Type: "name", Value: "Old"},
		{Type: "role", Value: "dev"},
		{Type: "name", Value: "Older"},
	}

	c.SetValue("name", "New")
	assert.Equal(t, [][2]string{{"role", "dev"}, {"name", "New"}}, pairs(c))
	assert.Equal(t, "New", c.Value("name"))

	c.SetValue("name", "")
	assert.Equal(t, "", c.Value("name"))
	assert.Empty(t, c.Values("name"))
}

func TestClaims_Clone(t *testing.T) {
	c := Claims{{Type: "a", Value: "1"}}
	d := c.Clone()
	d[0].Value = "2"
	assert.Equal(t, "1", c[0].Value)
	assert.Nil(t, Claims(nil).Clone())
}

func TestUser_Clone(t *testing.T) {
	u := &User{ID: "1", Username: "alice", Claims: Claims{{Type: "role", Value: "admin"}}}
	c := u.Clone()
	c.Claims.Add("role", "dev")
	c.Username = "bob"

	assert.Equal(t, "alice", u.Username)
	assert.Len(t, u.Claims, 1)
	assert.Nil(t, (*User)(nil).Clone())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alice", Normalize(" Alice "))
}
