package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
)

// TestSecretRedactionAtInfoLevel verifies secrets are redacted in Info-level logs
func TestSecretRedactionAtInfoLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, false)

	secretValue := "super-secret-password-12345"
	logger.Info("Retrieved secret: %s", logging.Secret(secretValue))

	output := buf.String()
	assert.Contains(t, output, "[REDACTED]", "Log should contain redaction marker")
	assert.NotContains(t, output, secretValue, "Log must not contain actual secret value")
	assert.Contains(t, output, "Retrieved secret", "Log should contain message text")
}

// TestSecretRedactionAtDebugLevel verifies secrets are redacted in Debug-level logs
func TestSecretRedactionAtDebugLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, true)

	secretValue := "debug-secret-api-key-67890"
	logger.Debug("Processing secret: %s", logging.Secret(secretValue))

	output := buf.String()
	assert.Contains(t, output, "[REDACTED]", "Debug log should contain redaction marker")
	assert.NotContains(t, output, secretValue, "Debug log must not contain actual secret value")
	assert.Contains(t, output, "[DEBUG]", "Should indicate debug level")
}

// TestMultipleSecretsRedaction verifies multiple secrets in same log are all redacted
func TestMultipleSecretsRedaction(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, false)

	secret1 := "password-123"
	secret2 := "api-key-456"
	secret3 := "token-789"

	logger.Info("Credentials: password=%s, api_key=%s, token=%s",
		logging.Secret(secret1),
		logging.Secret(secret2),
		logging.Secret(secret3))

	output := buf.String()
	redactedCount := strings.Count(output, "[REDACTED]")
	assert.Equal(t, 3, redactedCount, "All three secrets should be redacted")

	assert.NotContains(t, output, secret1)
	assert.NotContains(t, output, secret2)
	assert.NotContains(t, output, secret3)
}

// TestSecretRedactionWithFormatting verifies secrets are redacted regardless of formatting
func TestSecretRedactionWithFormatting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		secret     string
		formatStr  string
		formatArgs []interface{}
	}{
		{
			name:       "string_format",
			secret:     "secret-string-format",
			formatStr:  "Value: %s",
			formatArgs: []interface{}{logging.Secret("secret-string-format")},
		},
		{
			name:       "quoted_format",
			secret:     "secret-quoted",
			formatStr:  "Value: '%s'",
			formatArgs: []interface{}{logging.Secret("secret-quoted")},
		},
		{
			name:       "go_syntax_format",
			secret:     "secret-gosyntax",
			formatStr:  "Value: %#v",
			formatArgs: []interface{}{logging.Secret("secret-gosyntax")},
		},
		{
			name:       "multiple_placeholders",
			secret:     "secret-multi",
			formatStr:  "First: %s, Second: %s",
			formatArgs: []interface{}{"public", logging.Secret("secret-multi")},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := logging.NewWithWriter(&buf, false)

			logger.Info(tt.formatStr, tt.formatArgs...)

			assert.Contains(t, buf.String(), "[REDACTED]")
			assert.NotContains(t, buf.String(), tt.secret)
		})
	}
}

// TestSecretRedactionWithNonSecretData verifies non-secret data is not redacted
func TestSecretRedactionWithNonSecretData(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, false)

	publicValue := "public-information"
	secretValue := "private-secret-123"

	logger.Info("Public: %s, Secret: %s", publicValue, logging.Secret(secretValue))

	output := buf.String()
	assert.Contains(t, output, publicValue, "Public information should not be redacted")
	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, secretValue)
}

// TestRedactFunction verifies the Redact helper function
func TestRedactFunction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		secrets  []string
		expected string
	}{
		{
			name:     "single_secret",
			input:    "password is secret123",
			secrets:  []string{"secret123"},
			expected: "password is [REDACTED]",
		},
		{
			name:     "multiple_secrets",
			input:    "user:admin password:secret123 token:xyz789",
			secrets:  []string{"admin", "secret123", "xyz789"},
			expected: "user:[REDACTED] password:[REDACTED] token:[REDACTED]",
		},
		{
			name:     "no_secrets",
			input:    "public information",
			secrets:  []string{},
			expected: "public information",
		},
		{
			name:     "short_secrets_not_redacted",
			input:    "value is abc",
			secrets:  []string{"abc"}, // Too short (len <= 3)
			expected: "value is abc",
		},
		{
			name:     "empty_secret_ignored",
			input:    "value is test",
			secrets:  []string{""},
			expected: "value is test",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := logging.Redact(tt.input, tt.secrets)
			assert.Equal(t, tt.expected, result)
		})
	}
}
