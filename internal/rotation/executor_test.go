package rotation_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
	"github.com/psd401/aistudio.psd401.ai/internal/rotation"
	"github.com/psd401/aistudio.psd401.ai/internal/secretstore"
	"github.com/psd401/aistudio.psd401.ai/tests/fakes"
)

// scriptedStrategy lets a test control each strategy hook. Unset hooks
// behave as benign no-ops.
type scriptedStrategy struct {
	newPayload func(ctx context.Context, current *rotation.Payload) (*rotation.Payload, error)
	install    func(ctx context.Context, current, pending *rotation.Payload) error
	verify     func(ctx context.Context, pending *rotation.Payload) error
}

func (s *scriptedStrategy) Name() string { return "scripted" }

func (s *scriptedStrategy) NewPayload(ctx context.Context, current *rotation.Payload) (*rotation.Payload, error) {
	if s.newPayload != nil {
		return s.newPayload(ctx, current)
	}
	return rotation.NewOpaquePayload("scripted-pending"), nil
}

func (s *scriptedStrategy) Install(ctx context.Context, current, pending *rotation.Payload) error {
	if s.install != nil {
		return s.install(ctx, current, pending)
	}
	return nil
}

func (s *scriptedStrategy) Verify(ctx context.Context, pending *rotation.Payload) error {
	if s.verify != nil {
		return s.verify(ctx, pending)
	}
	return nil
}

func newExecutor(fake *fakes.FakeSecretsManagerClient, strategy rotation.Strategy) *rotation.Executor {
	store := secretstore.New(aws.Config{}, secretstore.WithClient(fake))
	return rotation.NewExecutor(store, strategy, logging.NewWithWriter(io.Discard, true))
}

func event(secretID, token string, step rotation.Step) rotation.Event {
	return rotation.Event{SecretID: secretID, ClientRequestToken: token, Step: step}
}

func TestCreateSecretStagesPendingWithoutTouchingCurrent(t *testing.T) {
	t.Parallel()

	fake := fakes.NewSecretsManager()
	currentID := fake.AddSecretString("app/api-key", `{"apiKey":"aistudio_old"}`)
	exec := newExecutor(fake, rotation.NewAPIKeyStrategy(logging.NewWithWriter(io.Discard, false)))

	require.NoError(t, exec.Handle(context.Background(), event("app/api-key", "tok-1", rotation.StepCreate)))

	assert.Equal(t, currentID, fake.VersionWithStage("app/api-key", "AWSCURRENT"),
		"AWSCURRENT must not move at the create step")
	assert.Equal(t, "tok-1", fake.VersionWithStage("app/api-key", "AWSPENDING"))

	current := fake.Secrets["app/api-key"].Versions[currentID]
	assert.Equal(t, `{"apiKey":"aistudio_old"}`, current.Value)

	pending := fake.Secrets["app/api-key"].Versions["tok-1"]
	require.NotNil(t, pending)
	assert.NotEqual(t, current.Value, pending.Value)
}

func TestCreateSecretIdempotentUnderTokenReplay(t *testing.T) {
	t.Parallel()

	fake := fakes.NewSecretsManager()
	fake.AddSecretString("app/api-key", `{"apiKey":"aistudio_old"}`)
	exec := newExecutor(fake, rotation.NewAPIKeyStrategy(logging.NewWithWriter(io.Discard, false)))

	require.NoError(t, exec.Handle(context.Background(), event("app/api-key", "tok-1", rotation.StepCreate)))
	staged := fake.Secrets["app/api-key"].Versions["tok-1"].Value

	require.NoError(t, exec.Handle(context.Background(), event("app/api-key", "tok-1", rotation.StepCreate)))

	assert.Equal(t, 1, fake.PutSecretValueCalls, "replay must not write a second version")
	assert.Len(t, fake.Secrets["app/api-key"].Versions, 2)
	assert.Equal(t, staged, fake.Secrets["app/api-key"].Versions["tok-1"].Value,
		"replay must not regenerate the staged payload")
}

func TestFullRotationPromotesPendingAndDemotesCurrent(t *testing.T) {
	t.Parallel()

	fake := fakes.NewSecretsManager()
	oldID := fake.AddSecretString("app/api-key", `{"apiKey":"aistudio_old"}`)
	exec := newExecutor(fake, rotation.NewAPIKeyStrategy(logging.NewWithWriter(io.Discard, false)))

	ctx := context.Background()
	for _, step := range []rotation.Step{rotation.StepCreate, rotation.StepSet, rotation.StepTest, rotation.StepFinish} {
		require.NoError(t, exec.Handle(ctx, event("app/api-key", "tok-new", step)), "step %s", step)
	}

	assert.Equal(t, "tok-new", fake.VersionWithStage("app/api-key", "AWSCURRENT"))
	assert.Equal(t, oldID, fake.VersionWithStage("app/api-key", "AWSPREVIOUS"),
		"the demoted version keeps the old value under AWSPREVIOUS")

	old := fake.Secrets["app/api-key"].Versions[oldID]
	assert.NotContains(t, old.Stages, "AWSCURRENT")
	assert.Equal(t, `{"apiKey":"aistudio_old"}`, old.Value)
}

func TestFinishSecretAlreadyCurrentReplay(t *testing.T) {
	t.Parallel()

	fake := fakes.NewSecretsManager()
	fake.AddSecret("app/api-key", &fakes.Secret{Versions: map[string]*fakes.SecretVersion{
		"tok-1": {Value: `{"apiKey":"aistudio_new"}`, Stages: []string{"AWSCURRENT"}},
	}})
	exec := newExecutor(fake, rotation.NewAPIKeyStrategy(logging.NewWithWriter(io.Discard, false)))

	require.NoError(t, exec.Handle(context.Background(), event("app/api-key", "tok-1", rotation.StepFinish)))

	assert.Equal(t, 0, fake.UpdateSecretVersionStageCalls,
		"replay of a finished rotation must not move stages again")
	assert.Equal(t, "tok-1", fake.VersionWithStage("app/api-key", "AWSCURRENT"))
}

func TestUnknownStepFailsBeforeAnyStoreCall(t *testing.T) {
	t.Parallel()

	fake := fakes.NewSecretsManager()
	fake.AddSecretString("app/api-key", `{"apiKey":"aistudio_old"}`)
	exec := newExecutor(fake, &scriptedStrategy{})

	err := exec.Handle(context.Background(), event("app/api-key", "tok-1", rotation.Step("restoreSecret")))

	assert.ErrorIs(t, err, rotation.ErrInvalidStep)
	assert.Equal(t, 0, fake.PutSecretValueCalls)
	assert.Equal(t, 0, fake.UpdateSecretVersionStageCalls)
}

func TestHandleRejectsIncompleteEvents(t *testing.T) {
	t.Parallel()

	exec := newExecutor(fakes.NewSecretsManager(), &scriptedStrategy{})

	tests := []struct {
		name  string
		event rotation.Event
	}{
		{name: "missing secret id", event: rotation.Event{ClientRequestToken: "tok", Step: rotation.StepCreate}},
		{name: "missing token", event: rotation.Event{SecretID: "app/x", Step: rotation.StepCreate}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Error(t, exec.Handle(context.Background(), tt.event))
		})
	}
}

func TestSetSecretHandsCurrentAndPendingToStrategy(t *testing.T) {
	t.Parallel()

	fake := fakes.NewSecretsManager()
	fake.AddSecret("app/db", &fakes.Secret{Versions: map[string]*fakes.SecretVersion{
		"cur-1": {Value: `{"username":"app","password":"old"}`, Stages: []string{"AWSCURRENT"}},
		"tok-1": {Value: `{"username":"app","password":"new"}`, Stages: []string{"AWSPENDING"}},
	}})

	var installed bool
	strategy := &scriptedStrategy{
		install: func(_ context.Context, current, pending *rotation.Payload) error {
			installed = true
			require.NotNil(t, current)
			assert.Equal(t, "old", current.FieldOr("password", ""))
			assert.Equal(t, "new", pending.FieldOr("password", ""))
			return nil
		},
	}

	exec := newExecutor(fake, strategy)
	require.NoError(t, exec.Handle(context.Background(), event("app/db", "tok-1", rotation.StepSet)))
	assert.True(t, installed)
}

func TestSetSecretFirstRotationHasNilCurrent(t *testing.T) {
	t.Parallel()

	fake := fakes.NewSecretsManager()
	fake.AddSecret("app/fresh", &fakes.Secret{Versions: map[string]*fakes.SecretVersion{
		"tok-1": {Value: `{"value":"v1"}`, Stages: []string{"AWSPENDING"}},
	}})

	var sawNilCurrent bool
	strategy := &scriptedStrategy{
		install: func(_ context.Context, current, _ *rotation.Payload) error {
			sawNilCurrent = current == nil
			return nil
		},
	}

	exec := newExecutor(fake, strategy)
	require.NoError(t, exec.Handle(context.Background(), event("app/fresh", "tok-1", rotation.StepSet)))
	assert.True(t, sawNilCurrent, "a secret with no AWSCURRENT version hands the strategy a nil current")
}

func TestSetSecretFailsWithoutPendingVersion(t *testing.T) {
	t.Parallel()

	fake := fakes.NewSecretsManager()
	fake.AddSecretString("app/db", `{"password":"old"}`)
	exec := newExecutor(fake, &scriptedStrategy{})

	err := exec.Handle(context.Background(), event("app/db", "tok-unstaged", rotation.StepSet))
	require.Error(t, err)
	assert.True(t, secretstore.IsNotFound(err))
}

func TestTestSecretValidationFailureBlocksNothingElse(t *testing.T) {
	t.Parallel()

	fake := fakes.NewSecretsManager()
	currentID := fake.AddSecretString("app/db", `{"password":"old"}`)
	fake.Secrets["app/db"].Versions["tok-1"] = &fakes.SecretVersion{
		Value:  `{"password":"broken"}`,
		Stages: []string{"AWSPENDING"},
	}

	strategy := &scriptedStrategy{
		verify: func(_ context.Context, _ *rotation.Payload) error {
			return &rotation.ValidationError{SecretType: "scripted", Reason: "credential rejected"}
		},
	}

	exec := newExecutor(fake, strategy)
	err := exec.Handle(context.Background(), event("app/db", "tok-1", rotation.StepTest))

	var validation *rotation.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "credential rejected", validation.Reason)

	assert.Equal(t, currentID, fake.VersionWithStage("app/db", "AWSCURRENT"),
		"a failed test must leave the stage map alone")
	assert.Equal(t, "tok-1", fake.VersionWithStage("app/db", "AWSPENDING"))
}

func TestCreateSecretPropagatesStrategyErrors(t *testing.T) {
	t.Parallel()

	fake := fakes.NewSecretsManager()
	fake.AddSecretString("app/db", `{"password":"old"}`)

	boom := errors.New("generator offline")
	strategy := &scriptedStrategy{
		newPayload: func(_ context.Context, _ *rotation.Payload) (*rotation.Payload, error) {
			return nil, boom
		},
	}

	exec := newExecutor(fake, strategy)
	err := exec.Handle(context.Background(), event("app/db", "tok-1", rotation.StepCreate))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "", fake.VersionWithStage("app/db", "AWSPENDING"), "no version staged on failure")
}
