package rotation

import (
	"context"
	"fmt"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
	"github.com/psd401/aistudio.psd401.ai/internal/secretstore"
)

// Store is the version-stage storage the executor drives.
// *secretstore.Store implements it; tests substitute fakes.
type Store interface {
	Current(ctx context.Context, secretID string) (string, error)
	Pending(ctx context.Context, secretID, token string) (string, error)
	PendingExists(ctx context.Context, secretID, token string) (bool, error)
	PutPending(ctx context.Context, secretID, token, payload string) error
	Stages(ctx context.Context, secretID string) (map[string][]string, error)
	MoveStage(ctx context.Context, secretID, stage, toVersion, fromVersion string) error
}

// Strategy supplies the per-secret-type parts of a rotation. Strategies
// never touch version stages; the executor owns the protocol.
type Strategy interface {
	// Name identifies the secret type in logs.
	Name() string

	// NewPayload produces the payload to stage as AWSPENDING. current is
	// nil when the secret has no AWSCURRENT version; strategies that need
	// an existing credential return ErrNoCurrentVersion, the others treat
	// it as a first rotation and mint from nothing.
	NewPayload(ctx context.Context, current *Payload) (*Payload, error)

	// Install applies the pending credential to the target system,
	// authenticating with the current one. Types with no target system
	// accept the step as a no-op.
	Install(ctx context.Context, current, pending *Payload) error

	// Verify checks that the pending credential is usable. Failures are
	// ValidationErrors; the version is never promoted past a failed check.
	Verify(ctx context.Context, pending *Payload) error
}

// Executor runs rotation steps for one secret type.
type Executor struct {
	store    Store
	strategy Strategy
	logger   *logging.Logger
}

// NewExecutor wires a strategy to a store.
func NewExecutor(store Store, strategy Strategy, logger *logging.Logger) *Executor {
	return &Executor{store: store, strategy: strategy, logger: logger}
}

// Handle dispatches one rotation step. It is the Lambda entrypoint.
func (e *Executor) Handle(ctx context.Context, event Event) error {
	if event.SecretID == "" || event.ClientRequestToken == "" {
		return fmt.Errorf("rotation event is missing SecretId or ClientRequestToken")
	}

	e.logger.Info("%s: step %s for secret %s", e.strategy.Name(), event.Step, event.SecretID)

	switch event.Step {
	case StepCreate:
		return e.createSecret(ctx, event.SecretID, event.ClientRequestToken)
	case StepSet:
		return e.setSecret(ctx, event.SecretID, event.ClientRequestToken)
	case StepTest:
		return e.testSecret(ctx, event.SecretID, event.ClientRequestToken)
	case StepFinish:
		return e.finishSecret(ctx, event.SecretID, event.ClientRequestToken)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStep, string(event.Step))
	}
}

// createSecret stages the next credential as AWSPENDING under the token.
// A replay that finds its pending version already staged succeeds without
// generating anything.
func (e *Executor) createSecret(ctx context.Context, secretID, token string) error {
	exists, err := e.store.PendingExists(ctx, secretID, token)
	if err != nil {
		return fmt.Errorf("createSecret: %w", err)
	}
	if exists {
		e.logger.Info("createSecret: pending version already staged for %s, nothing to do", secretID)
		return nil
	}

	current, err := e.currentPayload(ctx, secretID)
	if err != nil {
		return fmt.Errorf("createSecret: %w", err)
	}

	pending, err := e.strategy.NewPayload(ctx, current)
	if err != nil {
		return fmt.Errorf("createSecret: %w", err)
	}

	encoded, err := pending.Encode()
	if err != nil {
		return fmt.Errorf("createSecret: %w", err)
	}
	if err := e.store.PutPending(ctx, secretID, token, encoded); err != nil {
		return fmt.Errorf("createSecret: %w", err)
	}

	e.logger.Info("createSecret: staged pending version for %s", secretID)
	return nil
}

// setSecret installs the pending credential on the target system. The
// current credential authenticates the change; the pending one is not
// live yet.
func (e *Executor) setSecret(ctx context.Context, secretID, token string) error {
	rawPending, err := e.store.Pending(ctx, secretID, token)
	if err != nil {
		return fmt.Errorf("setSecret: %w", err)
	}

	current, err := e.currentPayload(ctx, secretID)
	if err != nil {
		return fmt.Errorf("setSecret: %w", err)
	}

	if err := e.strategy.Install(ctx, current, ParsePayload(rawPending)); err != nil {
		return fmt.Errorf("setSecret: %w", err)
	}

	e.logger.Info("setSecret: completed for %s", secretID)
	return nil
}

// testSecret verifies the pending credential before promotion.
func (e *Executor) testSecret(ctx context.Context, secretID, token string) error {
	rawPending, err := e.store.Pending(ctx, secretID, token)
	if err != nil {
		return fmt.Errorf("testSecret: %w", err)
	}

	if err := e.strategy.Verify(ctx, ParsePayload(rawPending)); err != nil {
		return fmt.Errorf("testSecret: %w", err)
	}

	e.logger.Info("testSecret: pending version verified for %s", secretID)
	return nil
}

// finishSecret moves AWSCURRENT onto the token's version in one atomic
// stage move. The service applies AWSPREVIOUS to the demoted version. A
// replay that finds the token already current succeeds without moving
// anything.
func (e *Executor) finishSecret(ctx context.Context, secretID, token string) error {
	stages, err := e.store.Stages(ctx, secretID)
	if err != nil {
		return fmt.Errorf("finishSecret: %w", err)
	}

	currentVersion := versionWithStage(stages, secretstore.StageCurrent)
	if currentVersion == token {
		e.logger.Info("finishSecret: version %s is already current for %s", token, secretID)
		return nil
	}

	if err := e.store.MoveStage(ctx, secretID, secretstore.StageCurrent, token, currentVersion); err != nil {
		return fmt.Errorf("finishSecret: %w", err)
	}

	e.logger.Info("finishSecret: promoted version %s to current for %s", token, secretID)
	return nil
}

// currentPayload reads the AWSCURRENT payload, mapping its absence to a
// nil payload so strategies decide whether a first rotation is allowed.
func (e *Executor) currentPayload(ctx context.Context, secretID string) (*Payload, error) {
	raw, err := e.store.Current(ctx, secretID)
	if err != nil {
		if secretstore.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return ParsePayload(raw), nil
}

func versionWithStage(stages map[string][]string, stage string) string {
	for version, labels := range stages {
		for _, label := range labels {
			if label == stage {
				return version
			}
		}
	}
	return ""
}
