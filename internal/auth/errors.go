package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration      = errors.New("auth: server configuration incomplete")
	ErrStoreUnavailable   = errors.New("auth: user store unavailable")
	ErrValidation         = errors.New("auth: missing required fields")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenGeneration    = errors.New("auth: token generation failed")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

// ConflictError reports a registration that collides with an existing user.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("auth: %s already registered", e.Field)
}

// DisplayField returns the conflicting field name with its first letter upper-cased.
func (e *ConflictError) DisplayField() string {
	if e.Field == "" {
		return ""
	}
	return strings.ToUpper(e.Field[:1]) + e.Field[1:]
}
