// Package secretstore wraps the Secrets Manager operations the rotation
// state machine and the compliance auditor need: staged version reads and
// writes, version-stage moves, and random password generation.
//
// All state lives in the secret's version metadata. The store never caches
// and never logs secret material.
package secretstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// Version stage labels used by the rotation protocol.
const (
	StageCurrent  = "AWSCURRENT"
	StagePending  = "AWSPENDING"
	StagePrevious = "AWSPREVIOUS"
)

// SecretsManagerAPI defines the interface for AWS Secrets Manager operations.
// This allows for mocking in tests.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	UpdateSecretVersionStage(ctx context.Context, params *secretsmanager.UpdateSecretVersionStageInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error)
	GetRandomPassword(ctx context.Context, params *secretsmanager.GetRandomPasswordInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetRandomPasswordOutput, error)
}

// Store is a thin, stateless client over Secrets Manager version stages.
type Store struct {
	client          SecretsManagerAPI
	endpoint        string
	accessKeyID     string
	secretAccessKey string
}

// Option is a functional option for configuring the store.
type Option func(*Store)

// WithClient sets a custom Secrets Manager client (for testing).
func WithClient(client SecretsManagerAPI) Option {
	return func(s *Store) {
		s.client = client
	}
}

// WithEndpoint overrides the service endpoint, for LocalStack or testing.
// Empty means the default endpoint.
func WithEndpoint(endpoint string) Option {
	return func(s *Store) {
		s.endpoint = endpoint
	}
}

// WithStaticCredentials pins the client to fixed credentials, for LocalStack
// or testing against a custom endpoint. Ignored unless both parts are set.
func WithStaticCredentials(accessKeyID, secretAccessKey string) Option {
	return func(s *Store) {
		s.accessKeyID = accessKeyID
		s.secretAccessKey = secretAccessKey
	}
}

// New creates a store from an already-loaded AWS config.
func New(cfg aws.Config, opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		var clientOpts []func(*secretsmanager.Options)
		if s.endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &s.endpoint
			})
		}
		if s.accessKeyID != "" && s.secretAccessKey != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.Credentials = credentials.NewStaticCredentialsProvider(s.accessKeyID, s.secretAccessKey, "")
			})
		}
		s.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}

	return s
}

// Current returns the AWSCURRENT payload of the secret.
func (s *Store) Current(ctx context.Context, secretID string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String(StageCurrent),
	})
	if err != nil {
		return "", fmt.Errorf("get current version: %w", err)
	}
	return secretValue(out)
}

// Pending returns the AWSPENDING payload staged under the given token.
func (s *Store) Pending(ctx context.Context, secretID, token string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionId:    aws.String(token),
		VersionStage: aws.String(StagePending),
	})
	if err != nil {
		return "", fmt.Errorf("get pending version: %w", err)
	}
	return secretValue(out)
}

// PendingExists reports whether a pending version is already staged under
// the given token. Absence is an answer, not an error: a missing version
// returns (false, nil).
func (s *Store) PendingExists(ctx context.Context, secretID, token string) (bool, error) {
	_, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionId:    aws.String(token),
		VersionStage: aws.String(StagePending),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("check pending version: %w", err)
	}
	return true, nil
}

// PutPending stages a new payload as AWSPENDING under the given token.
// Replaying with the same token and payload lands on the same version.
func (s *Store) PutPending(ctx context.Context, secretID, token, payload string) error {
	_, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:           aws.String(secretID),
		ClientRequestToken: aws.String(token),
		SecretString:       aws.String(payload),
		VersionStages:      []string{StagePending},
	})
	if err != nil {
		return fmt.Errorf("put pending version: %w", err)
	}
	return nil
}

// Stages returns the secret's version id to stage labels map.
func (s *Store) Stages(ctx context.Context, secretID string) (map[string][]string, error) {
	out, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("describe secret: %w", err)
	}
	return out.VersionIdsToStages, nil
}

// MoveStage attaches a stage label to toVersion, removing it from
// fromVersion in the same call. The service treats the move as atomic; when
// the label is AWSCURRENT it applies AWSPREVIOUS to the demoted version
// itself. An empty fromVersion attaches without removing.
func (s *Store) MoveStage(ctx context.Context, secretID, stage, toVersion, fromVersion string) error {
	input := &secretsmanager.UpdateSecretVersionStageInput{
		SecretId:        aws.String(secretID),
		VersionStage:    aws.String(stage),
		MoveToVersionId: aws.String(toVersion),
	}
	if fromVersion != "" {
		input.RemoveFromVersionId = aws.String(fromVersion)
	}

	if _, err := s.client.UpdateSecretVersionStage(ctx, input); err != nil {
		return fmt.Errorf("move stage %s: %w", stage, err)
	}
	return nil
}

// RandomPassword generates a password with the service's generator.
// Each included character type is required, matching what database engines
// expect from a fresh credential.
func (s *Store) RandomPassword(ctx context.Context, length int32, exclude string) (string, error) {
	out, err := s.client.GetRandomPassword(ctx, &secretsmanager.GetRandomPasswordInput{
		PasswordLength:          aws.Int64(int64(length)),
		ExcludeCharacters:       aws.String(exclude),
		RequireEachIncludedType: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("generate random password: %w", err)
	}
	if out.RandomPassword == nil {
		return "", errors.New("generate random password: empty response")
	}
	return *out.RandomPassword, nil
}

// IsNotFound reports whether err is the service's resource-not-found error.
func IsNotFound(err error) bool {
	var resourceNotFound *types.ResourceNotFoundException
	return errors.As(err, &resourceNotFound)
}

func secretValue(out *secretsmanager.GetSecretValueOutput) (string, error) {
	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	if out.SecretBinary != nil {
		return string(out.SecretBinary), nil
	}
	return "", errors.New("secret version has no value")
}
