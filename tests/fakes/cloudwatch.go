package fakes

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// FakeCloudWatchClient records published metrics and serves canned
// statistics.
type FakeCloudWatchClient struct {
	// PutMetricDataCalls records every publish in order.
	PutMetricDataCalls []*cloudwatch.PutMetricDataInput

	// Datapoints are returned from GetMetricStatistics.
	Datapoints []types.Datapoint

	PutMetricDataFunc       func(ctx context.Context, params *cloudwatch.PutMetricDataInput) (*cloudwatch.PutMetricDataOutput, error)
	GetMetricStatisticsFunc func(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// NewCloudWatch creates an empty fake client.
func NewCloudWatch() *FakeCloudWatchClient {
	return &FakeCloudWatchClient{}
}

// PutMetricData records the call.
func (f *FakeCloudWatchClient) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.PutMetricDataCalls = append(f.PutMetricDataCalls, params)
	if f.PutMetricDataFunc != nil {
		return f.PutMetricDataFunc(ctx, params)
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// GetMetricStatistics returns the configured datapoints.
func (f *FakeCloudWatchClient) GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	if f.GetMetricStatisticsFunc != nil {
		return f.GetMetricStatisticsFunc(ctx, params)
	}
	return &cloudwatch.GetMetricStatisticsOutput{
		Datapoints: append([]types.Datapoint(nil), f.Datapoints...),
	}, nil
}

// MetricNames flattens the names of every published datum, for assertions.
func (f *FakeCloudWatchClient) MetricNames() []string {
	var names []string
	for _, call := range f.PutMetricDataCalls {
		for _, d := range call.MetricData {
			if d.MetricName != nil {
				names = append(names, *d.MetricName)
			}
		}
	}
	return names
}
