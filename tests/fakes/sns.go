package fakes

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

// FakeSNSClient records published messages.
type FakeSNSClient struct {
	// PublishCalls records every publish in order.
	PublishCalls []*sns.PublishInput

	PublishFunc func(ctx context.Context, params *sns.PublishInput) (*sns.PublishOutput, error)
}

// NewSNS creates an empty fake client.
func NewSNS() *FakeSNSClient {
	return &FakeSNSClient{}
}

// Publish records the call.
func (f *FakeSNSClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.PublishCalls = append(f.PublishCalls, params)
	if f.PublishFunc != nil {
		return f.PublishFunc(ctx, params)
	}
	return &sns.PublishOutput{MessageId: aws.String(uuid.NewString())}, nil
}

// LastSubject returns the subject of the most recent publish, or "".
func (f *FakeSNSClient) LastSubject() string {
	if len(f.PublishCalls) == 0 {
		return ""
	}
	return aws.ToString(f.PublishCalls[len(f.PublishCalls)-1].Subject)
}

// LastMessage returns the body of the most recent publish, or "".
func (f *FakeSNSClient) LastMessage() string {
	if len(f.PublishCalls) == 0 {
		return ""
	}
	return aws.ToString(f.PublishCalls[len(f.PublishCalls)-1].Message)
}
