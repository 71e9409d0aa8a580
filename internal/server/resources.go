package server

import (
	"sort"

	"github.com/terraconstructs/idmgr/internal/metadata"
	"github.com/terraconstructs/idmgr/internal/result"
	"github.com/terraconstructs/idmgr/internal/services/identity"
)

// Links maps relation names to URLs or link objects.
type Links map[string]any

// Resource is the envelope for every successful response body.
type Resource struct {
	Data  any   `json:"data"`
	Links Links `json:"links,omitempty"`
}

// CreateLink advertises a create endpoint with the properties it expects.
type CreateLink struct {
	Href string               `json:"href"`
	Meta metadata.PropertySet `json:"meta"`
}

// QueryData is a page of query results, each item wrapped with its links.
type QueryData struct {
	Filter string     `json:"filter,omitempty"`
	Start  int        `json:"start"`
	Count  int        `json:"count"`
	Total  int        `json:"total"`
	Items  []Resource `json:"items"`
}

// PropertyResource is one resolved property with its descriptor.
type PropertyResource struct {
	Data  any                          `json:"data"`
	Meta  *metadata.PropertyDescriptor `json:"meta"`
	Links Links                        `json:"links"`
}

type RoleToggleMeta struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type RoleToggle struct {
	Data  bool           `json:"data"`
	Meta  RoleToggleMeta `json:"meta"`
	Links Links          `json:"links"`
}

type ClaimsResource struct {
	Data  []Resource `json:"data"`
	Links Links      `json:"links"`
}

type UserDetailData struct {
	Subject    string             `json:"subject"`
	Username   string             `json:"username"`
	Name       string             `json:"name,omitempty"`
	Properties []PropertyResource `json:"properties,omitempty"`
	Roles      []RoleToggle       `json:"roles,omitempty"`
	Claims     *ClaimsResource    `json:"claims,omitempty"`
}

type RoleDetailData struct {
	Subject     string             `json:"subject"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Properties  []PropertyResource `json:"properties,omitempty"`
}

func queryData[T any](q *result.QueryResult[T], item func(T) Resource) QueryData {
	items := make([]Resource, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, item(it))
	}
	return QueryData{
		Filter: q.Filter,
		Start:  q.Start,
		Count:  q.Count,
		Total:  q.Total,
		Items:  items,
	}
}

// propertyResources pairs resolved values with their update descriptors.
// Values whose type has no descriptor are dropped.
func propertyResources(values []identity.DisplayValue, set metadata.PropertySet, update func(typ string) string) []PropertyResource {
	out := make([]PropertyResource, 0, len(values))
	for _, v := range values {
		p := set.Find(v.Type)
		if p == nil {
			continue
		}
		out = append(out, PropertyResource{
			Data:  p.Convert(v.Value),
			Meta:  p,
			Links: Links{"update": update(v.Type)},
		})
	}
	return out
}

// roleToggles lists every role, sorted by name, with whether the user holds it.
func roleToggles(subject string, claims []identity.ClaimValue, roleClaimType string, roles []identity.RoleSummary) []RoleToggle {
	held := make(map[string]bool)
	for _, c := range claims {
		if c.Type == roleClaimType {
			held[c.Value] = true
		}
	}

	sorted := append([]identity.RoleSummary(nil), roles...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	out := make([]RoleToggle, 0, len(sorted))
	for _, r := range sorted {
		link := userRolePath(subject, r.Name)
		out = append(out, RoleToggle{
			Data:  held[r.Name],
			Meta:  RoleToggleMeta{Type: r.Name, Description: r.Description},
			Links: Links{"add": link, "remove": link},
		})
	}
	return out
}
