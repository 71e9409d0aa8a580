// Package metadata describes the editable properties of users and roles and
// binds each property to the entity field or function that stores it.
package metadata

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/terraconstructs/idmgr/internal/result"
)

// DataType describes how a property value is validated and displayed.
type DataType string

const (
	String   DataType = "string"
	Number   DataType = "number"
	Boolean  DataType = "boolean"
	Email    DataType = "email"
	URL      DataType = "url"
	Password DataType = "password"
)

// PropertyDescriptor describes one editable property of a user or role.
//
// A descriptor with a nil Binding is conventional: the identity service
// resolves it through its own fallback handling.
type PropertyDescriptor struct {
	Type        string   `json:"type"`
	DisplayName string   `json:"name"`
	DataType    DataType `json:"dataType"`
	Required    bool     `json:"required"`
	Binding     Binding  `json:"-"`
}

// Option configures a PropertyDescriptor.
type Option func(*PropertyDescriptor)

// WithDisplayName overrides the display name, which defaults to the type.
func WithDisplayName(name string) Option {
	return func(p *PropertyDescriptor) { p.DisplayName = name }
}

// WithDataType overrides the data type inferred from the binding.
func WithDataType(dt DataType) Option {
	return func(p *PropertyDescriptor) { p.DataType = dt }
}

// Required marks the property as required.
func Required() Option {
	return func(p *PropertyDescriptor) { p.Required = true }
}

// Property builds a descriptor backed by binding. The data type defaults to
// the binding's natural type.
func Property(typ string, binding Binding, opts ...Option) *PropertyDescriptor {
	p := &PropertyDescriptor{
		Type:        typ,
		DisplayName: typ,
		DataType:    String,
		Binding:     binding,
	}
	if binding != nil {
		p.DataType = binding.DataType()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Conventional builds a descriptor without a binding.
func Conventional(typ string, opts ...Option) *PropertyDescriptor {
	return Property(typ, nil, opts...)
}

// IsConventional reports whether the descriptor has no binding.
func (p *PropertyDescriptor) IsConventional() bool {
	return p.Binding == nil
}

// Get reads the property from instance. Password properties always read as nil.
func (p *PropertyDescriptor) Get(ctx context.Context, instance any) (*string, error) {
	if p.DataType == Password {
		return nil, nil
	}
	if p.Binding == nil {
		return nil, fmt.Errorf("get %q: %w", p.Type, ErrNoBinding)
	}
	return p.Binding.Get(ctx, instance)
}

// Set writes value into instance. An empty or whitespace value resets the
// field to its zero value. A value that cannot be converted yields a failed
// Result and leaves instance untouched.
func (p *PropertyDescriptor) Set(ctx context.Context, instance any, value string) (result.Result, error) {
	if p.Binding == nil {
		return result.Result{}, fmt.Errorf("set %q: %w", p.Type, ErrNoBinding)
	}
	return p.Binding.Set(ctx, instance, value)
}

// Convert turns a string value into the JSON value shown to clients:
// booleans and numbers become native values, everything else stays a string.
// Values that do not parse are returned unchanged.
func (p *PropertyDescriptor) Convert(value *string) any {
	if value == nil {
		return nil
	}
	switch p.DataType {
	case Boolean:
		if b, ok := ParseBool(*value); ok {
			return b
		}
	case Number:
		if f, err := strconv.ParseFloat(strings.TrimSpace(*value), 64); err == nil {
			return f
		}
	}
	return *value
}

// check reports configuration problems with this descriptor.
func (p *PropertyDescriptor) check() []string {
	var problems []string
	if strings.TrimSpace(p.Type) == "" {
		problems = append(problems, "property type must not be empty")
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		problems = append(problems, fmt.Sprintf("property %q has an empty display name", p.Type))
	}
	switch p.DataType {
	case String, Number, Boolean, Email, URL, Password:
	default:
		problems = append(problems, fmt.Sprintf("property %q has unknown data type %q", p.Type, p.DataType))
	}
	if c, ok := p.Binding.(interface{ check() error }); ok {
		if err := c.check(); err != nil {
			problems = append(problems, fmt.Sprintf("property %q: %v", p.Type, err))
		}
	}
	return problems
}

// ParseBool accepts "true" or "false" in any case, ignoring surrounding whitespace.
func ParseBool(s string) (bool, bool) {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, "true"):
		return true, true
	case strings.EqualFold(s, "false"):
		return false, true
	}
	return false, false
}

// FormatBool is the canonical string form of a boolean property.
func FormatBool(b bool) string {
	return strconv.FormatBool(b)
}
