package metadata

import (
	"fmt"
	"strings"
)

// PropertySet is an ordered list of descriptors.
type PropertySet []*PropertyDescriptor

// Find returns the descriptor with the given type, or nil.
func (s PropertySet) Find(typ string) *PropertyDescriptor {
	for _, p := range s {
		if p.Type == typ {
			return p
		}
	}
	return nil
}

// Types returns the property types in order.
func (s PropertySet) Types() []string {
	types := make([]string, 0, len(s))
	for _, p := range s {
		types = append(types, p.Type)
	}
	return types
}

// EntityMetadata describes what an administrator can do with one kind of entity.
type EntityMetadata struct {
	SupportsCreate   bool        `json:"supportsCreate"`
	SupportsDelete   bool        `json:"supportsDelete"`
	SupportsListing  bool        `json:"supportsListing"`
	CreateProperties PropertySet `json:"createProperties"`
	UpdateProperties PropertySet `json:"updateProperties"`
}

// EffectiveCreateProperties returns the create properties followed by every
// required update property whose type is not already a create property.
func (m *EntityMetadata) EffectiveCreateProperties() PropertySet {
	out := make(PropertySet, 0, len(m.CreateProperties)+len(m.UpdateProperties))
	out = append(out, m.CreateProperties...)
	for _, p := range m.UpdateProperties {
		if p.Required && m.CreateProperties.Find(p.Type) == nil {
			out = append(out, p)
		}
	}
	return out
}

// UserMetadata describes user properties and whether users carry claims.
type UserMetadata struct {
	EntityMetadata
	SupportsClaims bool `json:"supportsClaims"`
}

// RoleMetadata describes role properties.
type RoleMetadata struct {
	EntityMetadata
	// RoleClaimType is the user claim type that records role membership.
	// Empty disables role membership on users.
	RoleClaimType string `json:"roleClaimType,omitempty"`
}

// Metadata is the full description of the identity store.
type Metadata struct {
	Users UserMetadata `json:"userMetadata"`
	Roles RoleMetadata `json:"roleMetadata"`
}

// Validate checks every descriptor and rejects duplicate types or display
// names within a property set. All problems are reported in one ConfigError.
// Validate does not modify m.
func (m *Metadata) Validate() error {
	var problems []string
	sets := []struct {
		name string
		set  PropertySet
	}{
		{"user CreateProperties", m.Users.CreateProperties},
		{"user UpdateProperties", m.Users.UpdateProperties},
		{"role CreateProperties", m.Roles.CreateProperties},
		{"role UpdateProperties", m.Roles.UpdateProperties},
	}

	for _, s := range sets {
		for _, p := range s.set {
			if p == nil {
				problems = append(problems, fmt.Sprintf("nil descriptor in %s", s.name))
				continue
			}
			problems = append(problems, p.check()...)
		}
		if dups := duplicates(s.set, func(p *PropertyDescriptor) string { return p.Type }); len(dups) > 0 {
			problems = append(problems, fmt.Sprintf("duplicate %s types registered: %s", s.name, strings.Join(dups, ", ")))
		}
		if dups := duplicates(s.set, func(p *PropertyDescriptor) string { return p.DisplayName }); len(dups) > 0 {
			problems = append(problems, fmt.Sprintf("duplicate %s names registered: %s", s.name, strings.Join(dups, ", ")))
		}
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// duplicates returns each key that appears more than once, in first-seen order.
func duplicates(set PropertySet, key func(*PropertyDescriptor) string) []string {
	seen := make(map[string]int, len(set))
	var dups []string
	for _, p := range set {
		if p == nil {
			continue
		}
		k := key(p)
		seen[k]++
		if seen[k] == 2 {
			dups = append(dups, k)
		}
	}
	return dups
}
