package fakes

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
)

// FakeCostExplorerClient implements the Cost Explorer subset the s3cost
// analyzer uses. Usage groups accumulate into a single monthly result.
type FakeCostExplorerClient struct {
	Groups []types.Group

	// GetCostAndUsageCalls records every query, oldest first.
	GetCostAndUsageCalls []*costexplorer.GetCostAndUsageInput

	GetCostAndUsageFunc func(ctx context.Context, params *costexplorer.GetCostAndUsageInput) (*costexplorer.GetCostAndUsageOutput, error)
}

// NewCostExplorer creates an empty fake client.
func NewCostExplorer() *FakeCostExplorerClient {
	return &FakeCostExplorerClient{}
}

// AddUsage records one usage-type group with decimal-string amounts, the
// wire shape Cost Explorer returns.
func (f *FakeCostExplorerClient) AddUsage(usageType, cost, quantity string) {
	f.Groups = append(f.Groups, types.Group{
		Keys: []string{"Amazon Simple Storage Service", usageType},
		Metrics: map[string]types.MetricValue{
			"UnblendedCost": {Amount: aws.String(cost), Unit: aws.String("USD")},
			"UsageQuantity": {Amount: aws.String(quantity), Unit: aws.String("GB-Hours")},
		},
	})
}

func (f *FakeCostExplorerClient) GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	if f.GetCostAndUsageFunc != nil {
		return f.GetCostAndUsageFunc(ctx, params)
	}

	f.GetCostAndUsageCalls = append(f.GetCostAndUsageCalls, params)

	return &costexplorer.GetCostAndUsageOutput{
		ResultsByTime: []types.ResultByTime{
			{Groups: f.Groups},
		},
	}, nil
}
