// Package config reads handler configuration from the Lambda environment.
//
// Handlers have no config files and no flags; everything comes from
// environment variables set on the function. Each handler package defines
// its own Config struct and builds it from these helpers, collecting
// missing required variables into a single aggregated error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Error describes a missing or invalid environment variable.
type Error struct {
	Var     string
	Value   string
	Message string
}

func (e *Error) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config %s: %s", e.Var, e.Message)
	}
	return fmt.Sprintf("config %s=%q: %s", e.Var, e.Value, e.Message)
}

// String returns the variable's value, or def when unset or empty.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Require returns the variable's value, or an *Error when unset or empty.
func Require(key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return "", &Error{Var: key, Message: "required variable is not set"}
}

// Bool returns true only when the variable is set to "true" (any case).
// Unset or empty falls back to def.
func Bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	return strings.EqualFold(v, "true")
}

// Int returns the variable parsed as an integer, or def when unset or
// unparseable. Handlers that need range clamping do it themselves so the
// clamp can be logged.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Float returns the variable parsed as a float64, or def when unset or
// unparseable.
func Float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
