package rotation

import (
	"context"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
)

const (
	// Random portion of a generated API key. The "aistudio_" prefix makes
	// keys recognizable in logs and scanner rules.
	apiKeyLength = 64
	apiKeyPrefix = "aistudio_"

	// Keys shorter than this are rejected at the test step. Covers keys
	// written by older tooling that did not use the standard length.
	apiKeyMinLength = 32
)

// APIKeyStrategy rotates self-contained API keys. The key is the whole
// credential; there is no external system to install it into, so the set
// step is a no-op.
type APIKeyStrategy struct {
	logger *logging.Logger
}

// NewAPIKeyStrategy creates the API key rotation strategy.
func NewAPIKeyStrategy(logger *logging.Logger) *APIKeyStrategy {
	return &APIKeyStrategy{logger: logger}
}

// Name identifies the secret type in logs.
func (a *APIKeyStrategy) Name() string {
	return "apikey"
}

// NewPayload mints a fresh key. A structured payload keeps its other
// fields and gets a new apiKey; an opaque payload is replaced outright,
// keeping its opaque shape. No current version means a first rotation:
// start a structured payload.
func (a *APIKeyStrategy) NewPayload(ctx context.Context, current *Payload) (*Payload, error) {
	key, err := generateKey(apiKeyLength)
	if err != nil {
		return nil, err
	}
	key = apiKeyPrefix + key

	if current != nil && !current.Structured() {
		return NewOpaquePayload(key), nil
	}

	pending := NewStructuredPayload()
	if current != nil {
		pending = current.Clone()
	}
	if err := pending.SetField("apiKey", key); err != nil {
		return nil, err
	}
	return pending, nil
}

// Install is a no-op: an API key has no backing system to push to.
func (a *APIKeyStrategy) Install(ctx context.Context, current, pending *Payload) error {
	a.logger.Debug("apikey secrets have no set step")
	return nil
}

// Verify checks the pending key is plausible before it goes live.
func (a *APIKeyStrategy) Verify(ctx context.Context, pending *Payload) error {
	key := pending.FieldOr("apiKey", "")
	if !pending.Structured() {
		key = pending.Opaque()
	}

	if key == "" {
		return &ValidationError{SecretType: a.Name(), Reason: "pending payload has no apiKey"}
	}
	if len(key) < apiKeyMinLength {
		return &ValidationError{SecretType: a.Name(), Reason: "pending api key is shorter than 32 characters"}
	}
	return nil
}

var _ Strategy = (*APIKeyStrategy)(nil)
