package metadata

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPropertyType is returned when a conventional property reaches a
	// fallback switch that does not handle its type.
	ErrInvalidPropertyType = errors.New("invalid property type")

	// ErrInvalidInstance is returned when a binding receives an entity of the
	// wrong type.
	ErrInvalidInstance = errors.New("invalid instance")

	// ErrNoBinding is returned by PropertyDescriptor.Get and Set for conventional
	// properties. Callers fall back to their own handling.
	ErrNoBinding = errors.New("property has no binding")
)

// MsgConversionFailed is the Result error for a value that cannot be converted
// to the bound field's type.
const MsgConversionFailed = "Conversion failed"

// ConfigError reports malformed metadata. It is fatal at startup.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid metadata: %s", strings.Join(e.Problems, "; "))
}
