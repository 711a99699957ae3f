package rotation

import (
	"errors"
	"fmt"
)

// ErrInvalidStep reports a step outside the four-step rotation protocol.
// The handler fails fast on it, before any store call.
var ErrInvalidStep = errors.New("invalid rotation step")

// ErrNoCurrentVersion reports a rotation that needs an existing credential
// on a secret that has no AWSCURRENT version yet.
var ErrNoCurrentVersion = errors.New("secret has no current version")

// ValidationError reports a pending credential that failed its checks
// during testSecret, or a payload whose shape a strategy cannot work with.
type ValidationError struct {
	SecretType string
	Reason     string
	Err        error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s secret validation failed: %s: %v", e.SecretType, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s secret validation failed: %s", e.SecretType, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
