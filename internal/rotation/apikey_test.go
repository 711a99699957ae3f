package rotation_test

import (
	"context"
	"io"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
	"github.com/psd401/aistudio.psd401.ai/internal/rotation"
)

var apiKeyPattern = regexp.MustCompile(`^aistudio_[A-Za-z0-9_-]{64}$`)

func newAPIKeyStrategy() *rotation.APIKeyStrategy {
	return rotation.NewAPIKeyStrategy(logging.NewWithWriter(io.Discard, false))
}

func TestAPIKeyGeneration(t *testing.T) {
	t.Parallel()

	strategy := newAPIKeyStrategy()

	first, err := strategy.NewPayload(context.Background(), nil)
	require.NoError(t, err)
	second, err := strategy.NewPayload(context.Background(), nil)
	require.NoError(t, err)

	firstKey, ok := first.Field("apiKey")
	require.True(t, ok)
	secondKey, ok := second.Field("apiKey")
	require.True(t, ok)

	assert.Regexp(t, apiKeyPattern, firstKey)
	assert.Regexp(t, apiKeyPattern, secondKey)
	assert.NotEqual(t, firstKey, secondKey)
}

func TestAPIKeyNewPayloadKeepsOtherFields(t *testing.T) {
	t.Parallel()

	current := rotation.ParsePayload(`{"apiKey":"aistudio_old","owner":"data-team","tier":"gold"}`)
	pending, err := newAPIKeyStrategy().NewPayload(context.Background(), current)
	require.NoError(t, err)

	key, ok := pending.Field("apiKey")
	require.True(t, ok)
	assert.Regexp(t, apiKeyPattern, key)
	assert.NotEqual(t, "aistudio_old", key)

	assert.Equal(t, "data-team", pending.FieldOr("owner", ""))
	assert.Equal(t, "gold", pending.FieldOr("tier", ""))

	// The current payload must be untouched.
	assert.Equal(t, "aistudio_old", current.FieldOr("apiKey", ""))
}

func TestAPIKeyNewPayloadFromOpaqueCurrent(t *testing.T) {
	t.Parallel()

	pending, err := newAPIKeyStrategy().NewPayload(context.Background(), rotation.NewOpaquePayload("legacy-key"))
	require.NoError(t, err)

	require.False(t, pending.Structured(), "opaque keys keep the opaque shape")
	assert.Regexp(t, apiKeyPattern, pending.Opaque())
	assert.NotEqual(t, "legacy-key", pending.Opaque())
}

func TestAPIKeyVerify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload *rotation.Payload
		ok      bool
	}{
		{
			name:    "structured key",
			payload: rotation.ParsePayload(`{"apiKey":"aistudio_` + "0123456789012345678901234567890123456789012345678901234567890123" + `"}`),
			ok:      true,
		},
		{
			name:    "opaque key long enough",
			payload: rotation.NewOpaquePayload("0123456789abcdef0123456789abcdef"),
			ok:      true,
		},
		{
			name:    "too short",
			payload: rotation.ParsePayload(`{"apiKey":"aistudio_short"}`),
			ok:      false,
		},
		{
			name:    "missing key field",
			payload: rotation.ParsePayload(`{"owner":"data-team"}`),
			ok:      false,
		},
		{
			name:    "empty opaque",
			payload: rotation.NewOpaquePayload(""),
			ok:      false,
		},
	}

	strategy := newAPIKeyStrategy()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := strategy.Verify(context.Background(), tt.payload)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var validation *rotation.ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}
}

func TestAPIKeyInstallIsNoOp(t *testing.T) {
	t.Parallel()

	err := newAPIKeyStrategy().Install(context.Background(), nil, rotation.NewOpaquePayload("k"))
	assert.NoError(t, err)
}
