package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// EncodeSegment encodes an arbitrary string (property type, claim type or
// value, role name) as an unpadded base64url path segment.
func EncodeSegment(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// DecodeSegment reverses EncodeSegment. Trailing padding is tolerated.
func DecodeSegment(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSegment, err)
	}
	return string(b), nil
}

func decodedParam(r *http.Request, name string) (string, error) {
	return DecodeSegment(chi.URLParam(r, name))
}
