package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/google/uuid"
)

// SecretVersion is one staged version of a fake secret.
type SecretVersion struct {
	Value   string
	Stages  []string
	Created time.Time
}

// Secret holds the state of one fake secret.
type Secret struct {
	Versions map[string]*SecretVersion

	// Metadata surfaced by DescribeSecret and ListSecrets.
	RotationEnabled bool
	LastRotated     *time.Time
	LastChanged     *time.Time
	Tags            map[string]string
}

// FakeSecretsManagerClient implements the Secrets Manager subset the
// handlers use, with real version-stage semantics.
type FakeSecretsManagerClient struct {
	Secrets map[string]*Secret
	// Errors maps secret names to errors returned by any operation on them.
	Errors map[string]error

	// Call records for asserting on idempotence properties.
	PutSecretValueCalls           int
	UpdateSecretVersionStageCalls int

	// LastRandomPasswordInput records the most recent generator request.
	LastRandomPasswordInput *secretsmanager.GetRandomPasswordInput

	// Per-method overrides for custom behavior.
	GetSecretValueFunc           func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValueFunc           func(ctx context.Context, params *secretsmanager.PutSecretValueInput) (*secretsmanager.PutSecretValueOutput, error)
	DescribeSecretFunc           func(ctx context.Context, params *secretsmanager.DescribeSecretInput) (*secretsmanager.DescribeSecretOutput, error)
	UpdateSecretVersionStageFunc func(ctx context.Context, params *secretsmanager.UpdateSecretVersionStageInput) (*secretsmanager.UpdateSecretVersionStageOutput, error)
	GetRandomPasswordFunc        func(ctx context.Context, params *secretsmanager.GetRandomPasswordInput) (*secretsmanager.GetRandomPasswordOutput, error)
	ListSecretsFunc              func(ctx context.Context, params *secretsmanager.ListSecretsInput) (*secretsmanager.ListSecretsOutput, error)
}

// NewSecretsManager creates an empty fake client.
func NewSecretsManager() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]*Secret),
		Errors:  make(map[string]error),
	}
}

// AddSecretString creates a secret with a single AWSCURRENT version and
// returns that version's id.
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) string {
	versionID := uuid.NewString()
	now := time.Now()
	f.Secrets[name] = &Secret{
		Versions: map[string]*SecretVersion{
			versionID: {Value: value, Stages: []string{"AWSCURRENT"}, Created: now},
		},
		LastChanged: &now,
	}
	return versionID
}

// AddSecret installs a fully specified secret.
func (f *FakeSecretsManagerClient) AddSecret(name string, secret *Secret) {
	if secret.Versions == nil {
		secret.Versions = make(map[string]*SecretVersion)
	}
	f.Secrets[name] = secret
}

// AddError configures an error for every operation on the named secret.
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.Errors[name] = err
}

// VersionWithStage returns the id of the version carrying the stage, or "".
func (f *FakeSecretsManagerClient) VersionWithStage(name, stage string) string {
	secret, ok := f.Secrets[name]
	if !ok {
		return ""
	}
	for id, v := range secret.Versions {
		for _, s := range v.Stages {
			if s == stage {
				return id
			}
		}
	}
	return ""
}

func (f *FakeSecretsManagerClient) lookup(secretID string) (*Secret, error) {
	if err, exists := f.Errors[secretID]; exists {
		return nil, err
	}
	secret, exists := f.Secrets[secretID]
	if !exists {
		return nil, notFound("Secrets Manager can't find the specified secret: " + secretID)
	}
	return secret, nil
}

// GetSecretValue resolves a version by id, stage, or both. A version that
// exists but does not carry the requested stage is not found, matching the
// service.
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.GetSecretValueFunc != nil {
		return f.GetSecretValueFunc(ctx, params)
	}

	name := aws.ToString(params.SecretId)
	secret, err := f.lookup(name)
	if err != nil {
		return nil, err
	}

	wantID := aws.ToString(params.VersionId)
	wantStage := aws.ToString(params.VersionStage)
	if wantStage == "" && wantID == "" {
		wantStage = "AWSCURRENT"
	}

	for id, v := range secret.Versions {
		if wantID != "" && id != wantID {
			continue
		}
		if wantStage != "" && !hasStage(v, wantStage) {
			continue
		}
		return &secretsmanager.GetSecretValueOutput{
			ARN:           aws.String(secretARN(name)),
			Name:          aws.String(name),
			SecretString:  aws.String(v.Value),
			VersionId:     aws.String(id),
			VersionStages: append([]string(nil), v.Stages...),
			CreatedDate:   aws.Time(v.Created),
		}, nil
	}

	return nil, notFound(fmt.Sprintf("Secrets Manager can't find the specified secret value for staging label: %s", wantStage))
}

// PutSecretValue stages a new version. Replaying an existing client request
// token returns the already-created version without adding another.
func (f *FakeSecretsManagerClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.PutSecretValueCalls++
	if f.PutSecretValueFunc != nil {
		return f.PutSecretValueFunc(ctx, params)
	}

	name := aws.ToString(params.SecretId)
	secret, err := f.lookup(name)
	if err != nil {
		return nil, err
	}

	versionID := aws.ToString(params.ClientRequestToken)
	if versionID == "" {
		versionID = uuid.NewString()
	}

	if existing, ok := secret.Versions[versionID]; ok {
		return &secretsmanager.PutSecretValueOutput{
			ARN:           aws.String(secretARN(name)),
			Name:          aws.String(name),
			VersionId:     aws.String(versionID),
			VersionStages: append([]string(nil), existing.Stages...),
		}, nil
	}

	stages := append([]string(nil), params.VersionStages...)
	if len(stages) == 0 {
		stages = []string{"AWSCURRENT"}
	}
	secret.Versions[versionID] = &SecretVersion{
		Value:   aws.ToString(params.SecretString),
		Stages:  stages,
		Created: time.Now(),
	}

	return &secretsmanager.PutSecretValueOutput{
		ARN:           aws.String(secretARN(name)),
		Name:          aws.String(name),
		VersionId:     aws.String(versionID),
		VersionStages: stages,
	}, nil
}

// DescribeSecret reports the secret's metadata and version-stage map.
func (f *FakeSecretsManagerClient) DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	if f.DescribeSecretFunc != nil {
		return f.DescribeSecretFunc(ctx, params)
	}

	name := aws.ToString(params.SecretId)
	secret, err := f.lookup(name)
	if err != nil {
		return nil, err
	}

	versionIDsToStages := make(map[string][]string, len(secret.Versions))
	for id, v := range secret.Versions {
		versionIDsToStages[id] = append([]string(nil), v.Stages...)
	}

	return &secretsmanager.DescribeSecretOutput{
		ARN:                aws.String(secretARN(name)),
		Name:               aws.String(name),
		RotationEnabled:    aws.Bool(secret.RotationEnabled),
		LastRotatedDate:    secret.LastRotated,
		LastChangedDate:    secret.LastChanged,
		VersionIdsToStages: versionIDsToStages,
		Tags:               tagList(secret.Tags),
	}, nil
}

// UpdateSecretVersionStage moves a stage label between versions. Moving
// AWSCURRENT demotes the previous holder to AWSPREVIOUS, like the service.
func (f *FakeSecretsManagerClient) UpdateSecretVersionStage(ctx context.Context, params *secretsmanager.UpdateSecretVersionStageInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error) {
	f.UpdateSecretVersionStageCalls++
	if f.UpdateSecretVersionStageFunc != nil {
		return f.UpdateSecretVersionStageFunc(ctx, params)
	}

	name := aws.ToString(params.SecretId)
	secret, err := f.lookup(name)
	if err != nil {
		return nil, err
	}

	stage := aws.ToString(params.VersionStage)

	if from := aws.ToString(params.RemoveFromVersionId); from != "" {
		v, ok := secret.Versions[from]
		if !ok {
			return nil, notFound("version to remove stage from not found: " + from)
		}
		removeStage(v, stage)
		if stage == "AWSCURRENT" {
			removeStage(v, "AWSPREVIOUS")
			v.Stages = append(v.Stages, "AWSPREVIOUS")
		}
	}

	if to := aws.ToString(params.MoveToVersionId); to != "" {
		v, ok := secret.Versions[to]
		if !ok {
			return nil, notFound("version to move stage to not found: " + to)
		}
		if !hasStage(v, stage) {
			v.Stages = append(v.Stages, stage)
		}
	}

	return &secretsmanager.UpdateSecretVersionStageOutput{
		ARN:  aws.String(secretARN(name)),
		Name: aws.String(name),
	}, nil
}

// GetRandomPassword deterministically builds a password honoring the
// requested length and excluded characters, cycling through character
// classes so each included type appears.
func (f *FakeSecretsManagerClient) GetRandomPassword(ctx context.Context, params *secretsmanager.GetRandomPasswordInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetRandomPasswordOutput, error) {
	f.LastRandomPasswordInput = params
	if f.GetRandomPasswordFunc != nil {
		return f.GetRandomPasswordFunc(ctx, params)
	}

	length := int(aws.ToInt64(params.PasswordLength))
	if length <= 0 {
		length = 32
	}
	exclude := aws.ToString(params.ExcludeCharacters)

	classes := []string{
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ",
		"abcdefghijklmnopqrstuvwxyz",
		"0123456789",
		"!#$%&()*+,-.:;<=>?[]^_{|}~",
	}
	var b strings.Builder
	for i := 0; b.Len() < length; i++ {
		class := classes[i%len(classes)]
		for _, c := range class {
			if !strings.ContainsRune(exclude, c) {
				b.WriteRune(c)
				break
			}
		}
	}

	return &secretsmanager.GetRandomPasswordOutput{
		RandomPassword: aws.String(b.String()),
	}, nil
}

// ListSecrets pages through all secrets in name order.
func (f *FakeSecretsManagerClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	if f.ListSecretsFunc != nil {
		return f.ListSecretsFunc(ctx, params)
	}

	names := make([]string, 0, len(f.Secrets))
	for name := range f.Secrets {
		names = append(names, name)
	}
	sort.Strings(names)

	start := 0
	if params.NextToken != nil {
		start, _ = strconv.Atoi(*params.NextToken)
	}
	limit := len(names)
	if params.MaxResults != nil && int(*params.MaxResults) < limit {
		limit = int(*params.MaxResults)
	}

	var entries []types.SecretListEntry
	i := start
	for ; i < len(names) && len(entries) < limit; i++ {
		name := names[i]
		secret := f.Secrets[name]
		entries = append(entries, types.SecretListEntry{
			ARN:             aws.String(secretARN(name)),
			Name:            aws.String(name),
			RotationEnabled: aws.Bool(secret.RotationEnabled),
			LastRotatedDate: secret.LastRotated,
			LastChangedDate: secret.LastChanged,
			Tags:            tagList(secret.Tags),
		})
	}

	out := &secretsmanager.ListSecretsOutput{SecretList: entries}
	if i < len(names) {
		out.NextToken = aws.String(strconv.Itoa(i))
	}
	return out, nil
}

func hasStage(v *SecretVersion, stage string) bool {
	for _, s := range v.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

func removeStage(v *SecretVersion, stage string) {
	stages := v.Stages[:0]
	for _, s := range v.Stages {
		if s != stage {
			stages = append(stages, s)
		}
	}
	v.Stages = stages
}

func tagList(tags map[string]string) []types.Tag {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

func notFound(msg string) error {
	return &types.ResourceNotFoundException{Message: aws.String(msg)}
}

func secretARN(name string) string {
	return "arn:aws:secretsmanager:us-east-1:123456789012:secret:" + name
}
