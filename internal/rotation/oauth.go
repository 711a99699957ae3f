package rotation

import (
	"context"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
)

// TokenRefresher exchanges the current OAuth credential for a fresh one.
// Implementations talk to the identity provider's token endpoint using
// whatever grant the current payload carries (refresh_token, client
// credentials).
type TokenRefresher interface {
	Refresh(ctx context.Context, current *Payload) (*Payload, error)
}

// TokenRefresherFunc adapts a function to the TokenRefresher interface.
type TokenRefresherFunc func(ctx context.Context, current *Payload) (*Payload, error)

// Refresh calls f.
func (f TokenRefresherFunc) Refresh(ctx context.Context, current *Payload) (*Payload, error) {
	return f(ctx, current)
}

// OAuthStrategy rotates OAuth tokens. The heavy lifting happens at the
// create step, where the refresher obtains a new token from the provider;
// set is a no-op because the provider already issued the token.
type OAuthStrategy struct {
	refresher TokenRefresher
	logger    *logging.Logger
}

// OAuthOption configures an OAuthStrategy.
type OAuthOption func(*OAuthStrategy)

// WithTokenRefresher installs a provider-specific refresher.
func WithTokenRefresher(r TokenRefresher) OAuthOption {
	return func(o *OAuthStrategy) {
		o.refresher = r
	}
}

// NewOAuthStrategy creates the OAuth rotation strategy. Without an
// explicit refresher the current credential is carried forward unchanged,
// which keeps the state machine exercisable while a provider integration
// is wired up.
func NewOAuthStrategy(logger *logging.Logger, opts ...OAuthOption) *OAuthStrategy {
	o := &OAuthStrategy{
		logger: logger,
		refresher: TokenRefresherFunc(func(_ context.Context, current *Payload) (*Payload, error) {
			return current.Clone(), nil
		}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name identifies the secret type in logs.
func (o *OAuthStrategy) Name() string {
	return "oauth"
}

// NewPayload asks the refresher for a fresh token. Refreshing needs the
// current grant, so a missing current version is an error.
func (o *OAuthStrategy) NewPayload(ctx context.Context, current *Payload) (*Payload, error) {
	if current == nil {
		return nil, ErrNoCurrentVersion
	}
	if !current.Structured() {
		return nil, &ValidationError{SecretType: o.Name(), Reason: "payload must be a JSON object"}
	}

	pending, err := o.refresher.Refresh(ctx, current)
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// Install is a no-op: the provider issued the token at the create step.
func (o *OAuthStrategy) Install(ctx context.Context, current, pending *Payload) error {
	o.logger.Debug("oauth secrets have no set step")
	return nil
}

// Verify checks the pending payload carries a usable token.
func (o *OAuthStrategy) Verify(ctx context.Context, pending *Payload) error {
	if !pending.Structured() {
		return &ValidationError{SecretType: o.Name(), Reason: "payload must be a JSON object"}
	}
	if token := pending.FieldOr("access_token", ""); token == "" {
		return &ValidationError{SecretType: o.Name(), Reason: "pending payload has no access_token"}
	}
	return nil
}

var _ Strategy = (*OAuthStrategy)(nil)
