// Package metrics publishes custom CloudWatch metrics for the handlers.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchAPI is the CloudWatch subset the publisher uses.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Datum is one metric observation. An empty Unit counts.
type Datum struct {
	Name       string
	Value      float64
	Unit       types.StandardUnit
	Dimensions map[string]string
}

// Publisher writes metrics into one namespace, stamping every datum with an
// Environment dimension.
type Publisher struct {
	client      CloudWatchAPI
	namespace   string
	environment string
	now         func() time.Time
}

// NewPublisher creates a publisher for the namespace.
func NewPublisher(client CloudWatchAPI, namespace, environment string) *Publisher {
	return &Publisher{
		client:      client,
		namespace:   namespace,
		environment: environment,
		now:         time.Now,
	}
}

// Namespace reports the namespace the publisher writes to.
func (p *Publisher) Namespace() string {
	return p.namespace
}

// Publish writes the data in one PutMetricData call.
func (p *Publisher) Publish(ctx context.Context, data ...Datum) error {
	if len(data) == 0 {
		return nil
	}

	timestamp := p.now()
	metricData := make([]types.MetricDatum, 0, len(data))
	for _, d := range data {
		unit := d.Unit
		if unit == "" {
			unit = types.StandardUnitCount
		}
		metricData = append(metricData, types.MetricDatum{
			MetricName: aws.String(d.Name),
			Value:      aws.Float64(d.Value),
			Unit:       unit,
			Timestamp:  aws.Time(timestamp),
			Dimensions: p.dimensions(d.Dimensions),
		})
	}

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: metricData,
	})
	if err != nil {
		return fmt.Errorf("put metric data to %s: %w", p.namespace, err)
	}
	return nil
}

// Count publishes a single count metric without extra dimensions.
func (p *Publisher) Count(ctx context.Context, name string, value float64) error {
	return p.Publish(ctx, Datum{Name: name, Value: value})
}

// dimensions merges the datum's dimensions with the Environment dimension,
// in stable key order. Explicit Environment values win.
func (p *Publisher) dimensions(dims map[string]string) []types.Dimension {
	merged := make(map[string]string, len(dims)+1)
	if p.environment != "" {
		merged["Environment"] = p.environment
	}
	for k, v := range dims {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.Dimension, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Dimension{Name: aws.String(k), Value: aws.String(merged[k])})
	}
	return out
}
