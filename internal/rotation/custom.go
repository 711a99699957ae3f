package rotation

import (
	"context"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
)

const customValueLength = 64

// Hook is an optional extension point on the custom strategy. Install
// hooks push the pending value into an external system; verify hooks
// check it took.
type Hook func(ctx context.Context, payload *Payload) error

// CustomStrategy rotates free-form secrets: anything whose value is just
// a generated string under a "value" key. External side effects are
// supplied as hooks.
type CustomStrategy struct {
	logger  *logging.Logger
	install Hook
	verify  Hook
}

// CustomOption configures a CustomStrategy.
type CustomOption func(*CustomStrategy)

// WithInstallHook runs the hook with the pending payload at the set step.
func WithInstallHook(h Hook) CustomOption {
	return func(c *CustomStrategy) {
		c.install = h
	}
}

// WithVerifyHook runs the hook with the pending payload at the test step.
func WithVerifyHook(h Hook) CustomOption {
	return func(c *CustomStrategy) {
		c.verify = h
	}
}

// NewCustomStrategy creates the custom rotation strategy.
func NewCustomStrategy(logger *logging.Logger, opts ...CustomOption) *CustomStrategy {
	c := &CustomStrategy{logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the secret type in logs.
func (c *CustomStrategy) Name() string {
	return "custom"
}

// NewPayload generates a fresh value. Existing structured payloads keep
// their other fields; opaque or absent ones become structured.
func (c *CustomStrategy) NewPayload(ctx context.Context, current *Payload) (*Payload, error) {
	value, err := generateKey(customValueLength)
	if err != nil {
		return nil, err
	}

	pending := NewStructuredPayload()
	if current != nil && current.Structured() {
		pending = current.Clone()
	}
	if err := pending.SetField("value", value); err != nil {
		return nil, err
	}
	return pending, nil
}

// Install runs the install hook, if any.
func (c *CustomStrategy) Install(ctx context.Context, current, pending *Payload) error {
	if c.install == nil {
		c.logger.Debug("custom secret has no install hook")
		return nil
	}
	return c.install(ctx, pending)
}

// Verify checks the pending value exists, then runs the verify hook.
func (c *CustomStrategy) Verify(ctx context.Context, pending *Payload) error {
	if pending.FieldOr("value", "") == "" {
		return &ValidationError{SecretType: c.Name(), Reason: "pending payload has no value"}
	}
	if c.verify == nil {
		return nil
	}
	return c.verify(ctx, pending)
}

var _ Strategy = (*CustomStrategy)(nil)
