package metadata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/terraconstructs/idmgr/internal/result"
)

// Binding connects a descriptor to the entity it reads and writes.
type Binding interface {
	Get(ctx context.Context, instance any) (*string, error)
	Set(ctx context.Context, instance any, value string) (result.Result, error)
	DataType() DataType
}

// Scalar is a value type a binding can convert to and from its string form.
type Scalar interface {
	string | bool | int | int64 | float64
}

// StringField binds a string field of T.
func StringField[T any](field func(*T) *string) Binding {
	return Field(field)
}

// BoolField binds a bool field of T.
func BoolField[T any](field func(*T) *bool) Binding {
	return Field(field)
}

// NumberField binds a float64 field of T.
func NumberField[T any](field func(*T) *float64) Binding {
	return Field(field)
}

// IntField binds an int field of T.
func IntField[T any](field func(*T) *int) Binding {
	return Field(field)
}

// Field binds the field of T returned by the accessor. The accessor must
// return a pointer into the entity it receives.
func Field[T any, V Scalar](field func(*T) *V) Binding {
	return &fieldBinding[T, V]{field: field}
}

type fieldBinding[T any, V Scalar] struct {
	field func(*T) *V
}

func (b *fieldBinding[T, V]) Get(_ context.Context, instance any) (*string, error) {
	e, err := entityOf[T](instance)
	if err != nil {
		return nil, err
	}
	return formatScalar(*b.field(e)), nil
}

func (b *fieldBinding[T, V]) Set(_ context.Context, instance any, value string) (result.Result, error) {
	e, err := entityOf[T](instance)
	if err != nil {
		return result.Result{}, err
	}
	v, ok := parseScalar[V](value)
	if !ok {
		return result.Failure(MsgConversionFailed), nil
	}
	*b.field(e) = v
	return result.Success(), nil
}

func (b *fieldBinding[T, V]) DataType() DataType {
	return dataTypeOf[V]()
}

func (b *fieldBinding[T, V]) check() error {
	if b.field == nil {
		return errors.New("field accessor is nil")
	}
	return nil
}

// FromFunctions binds a property through a getter and setter pair.
func FromFunctions[T any, V Scalar](get func(*T) V, set func(*T, V) result.Result) Binding {
	b := &funcBinding[T, V]{}
	if get != nil {
		b.get = func(_ context.Context, e *T) (V, error) { return get(e), nil }
	}
	if set != nil {
		b.set = func(_ context.Context, e *T, v V) (result.Result, error) { return set(e, v), nil }
	}
	return b
}

// FromAsyncFunctions binds a property through a getter and setter that may
// block. Errors they return are faults, not validation failures.
func FromAsyncFunctions[T any, V Scalar](
	get func(context.Context, *T) (V, error),
	set func(context.Context, *T, V) (result.Result, error),
) Binding {
	return &funcBinding[T, V]{get: get, set: set}
}

type funcBinding[T any, V Scalar] struct {
	get func(context.Context, *T) (V, error)
	set func(context.Context, *T, V) (result.Result, error)
}

func (b *funcBinding[T, V]) Get(ctx context.Context, instance any) (*string, error) {
	e, err := entityOf[T](instance)
	if err != nil {
		return nil, err
	}
	v, err := b.get(ctx, e)
	if err != nil {
		return nil, err
	}
	return formatScalar(v), nil
}

func (b *funcBinding[T, V]) Set(ctx context.Context, instance any, value string) (result.Result, error) {
	e, err := entityOf[T](instance)
	if err != nil {
		return result.Result{}, err
	}
	v, ok := parseScalar[V](value)
	if !ok {
		return result.Failure(MsgConversionFailed), nil
	}
	return b.set(ctx, e, v)
}

func (b *funcBinding[T, V]) DataType() DataType {
	return dataTypeOf[V]()
}

func (b *funcBinding[T, V]) check() error {
	if b.get == nil || b.set == nil {
		return errors.New("getter and setter are both required")
	}
	return nil
}

func entityOf[T any](instance any) (*T, error) {
	e, ok := instance.(*T)
	if !ok || e == nil {
		return nil, fmt.Errorf("%w: expected %T, got %T", ErrInvalidInstance, (*T)(nil), instance)
	}
	return e, nil
}

func dataTypeOf[V Scalar]() DataType {
	var zero V
	switch any(zero).(type) {
	case string:
		return String
	case bool:
		return Boolean
	default:
		return Number
	}
}

// formatScalar renders v. The empty string renders as nil.
func formatScalar[V Scalar](v V) *string {
	var s string
	switch x := any(v).(type) {
	case string:
		if x == "" {
			return nil
		}
		s = x
	case bool:
		s = FormatBool(x)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	}
	return &s
}

// parseScalar converts s to V. Empty or whitespace input yields the zero value.
func parseScalar[V Scalar](s string) (V, bool) {
	var zero V
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return zero, true
	}

	var out any
	switch any(zero).(type) {
	case string:
		out = s
	case bool:
		b, ok := ParseBool(trimmed)
		if !ok {
			return zero, false
		}
		out = b
	case int:
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return zero, false
		}
		out = n
	case int64:
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return zero, false
		}
		out = n
	case float64:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return zero, false
		}
		out = f
	}
	return out.(V), true
}
