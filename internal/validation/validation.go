// Package validation checks submitted property values against metadata.
package validation

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/terraconstructs/idmgr/internal/metadata"
)

// PropertyValue is a single submitted property.
type PropertyValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Messages shared with callers that build their own failures.
const (
	MsgPropertyTypeRequired = "Property type is required"
)

// ValidateField checks one value against its descriptor and returns the first
// failure, or "" when the value is acceptable. Password strength is a store
// concern and is not checked here.
func ValidateField(p *metadata.PropertyDescriptor, value string) string {
	blank := strings.TrimSpace(value) == ""
	if p.Required && blank {
		return fmt.Sprintf("%s is required", p.DisplayName)
	}
	if blank {
		return ""
	}

	switch p.DataType {
	case metadata.Boolean:
		if _, ok := metadata.ParseBool(value); !ok {
			return fmt.Sprintf("%s must be true or false", p.DisplayName)
		}
	case metadata.Email:
		if !strings.Contains(value, "@") {
			return fmt.Sprintf("%s must be a valid email address", p.DisplayName)
		}
	case metadata.Number:
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return fmt.Sprintf("%s must be a number", p.DisplayName)
		}
	case metadata.URL:
		if !isAbsoluteHTTPURL(value) {
			return fmt.Sprintf("%s must be an absolute http or https URL", p.DisplayName)
		}
	}
	return ""
}

// ValidateCreate checks a full create payload against set. Errors are
// reported in order: field errors (registry order, then payload order),
// unrecognized properties, missing properties. Every declared property must
// be present in the payload, optional ones included.
func ValidateCreate(set metadata.PropertySet, values []PropertyValue) []string {
	var errs []string

	for _, p := range set {
		for _, v := range values {
			if v.Type != p.Type {
				continue
			}
			if msg := ValidateField(p, v.Value); msg != "" {
				errs = append(errs, msg)
			}
		}
	}

	declared := set.Types()
	submitted := make([]string, 0, len(values))
	for _, v := range values {
		submitted = append(submitted, v.Type)
	}

	if unknown := except(submitted, declared); len(unknown) > 0 {
		errs = append(errs, "Unrecognized properties: "+strings.Join(unknown, ", "))
	}
	if missing := except(declared, submitted); len(missing) > 0 {
		errs = append(errs, "Missing required properties: "+strings.Join(missing, ", "))
	}
	return errs
}

// ValidateUpdate checks a single property value against set.
func ValidateUpdate(set metadata.PropertySet, typ, value string) []string {
	if strings.TrimSpace(typ) == "" {
		return []string{MsgPropertyTypeRequired}
	}
	p := set.Find(typ)
	if p == nil {
		return []string{"Unrecognized property: " + typ}
	}
	if msg := ValidateField(p, value); msg != "" {
		return []string{msg}
	}
	return nil
}

// except returns the distinct elements of a not present in b, in first-seen order.
func except(a, b []string) []string {
	var out []string
	for _, s := range a {
		if !slices.Contains(b, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func isAbsoluteHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
