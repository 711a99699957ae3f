package fakes

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// FakeSSMClient implements the Systems Manager subset the aurora scaler
// uses.
type FakeSSMClient struct {
	// Parameters maps parameter names to string values.
	Parameters map[string]string
	// Errors maps parameter names to errors returned from GetParameter.
	Errors map[string]error

	GetParameterFunc func(ctx context.Context, params *ssm.GetParameterInput) (*ssm.GetParameterOutput, error)
}

// NewSSM creates an empty fake client.
func NewSSM() *FakeSSMClient {
	return &FakeSSMClient{
		Parameters: make(map[string]string),
		Errors:     make(map[string]error),
	}
}

// AddParameter installs a String parameter.
func (f *FakeSSMClient) AddParameter(name, value string) {
	f.Parameters[name] = value
}

// AddError configures an error for the named parameter.
func (f *FakeSSMClient) AddError(name string, err error) {
	f.Errors[name] = err
}

func (f *FakeSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if f.GetParameterFunc != nil {
		return f.GetParameterFunc(ctx, params)
	}

	name := aws.ToString(params.Name)
	if err, exists := f.Errors[name]; exists {
		return nil, err
	}
	value, exists := f.Parameters[name]
	if !exists {
		return nil, &types.ParameterNotFound{
			Message: aws.String(fmt.Sprintf("parameter %s not found", name)),
		}
	}

	return &ssm.GetParameterOutput{
		Parameter: &types.Parameter{
			Name:  aws.String(name),
			Type:  types.ParameterTypeString,
			Value: aws.String(value),
		},
	}, nil
}
