package aurora_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psd401/aistudio.psd401.ai/internal/aurora"
	"github.com/psd401/aistudio.psd401.ai/tests/fakes"
	"github.com/psd401/aistudio.psd401.ai/tests/testutil"
)

const clusterID = "aistudio-dev-cluster"

type optimizerFixture struct {
	rds    *fakes.FakeRDSClient
	cw     *fakes.FakeCloudWatchClient
	logger *testutil.TestLogger
}

func newOptimizer(t *testing.T, env string, idleMinutes int) (*aurora.Optimizer, *optimizerFixture) {
	t.Helper()
	f := &optimizerFixture{
		rds:    fakes.NewRDS(),
		cw:     fakes.NewCloudWatch(),
		logger: testutil.NewTestLogger(t),
	}
	cfg := aurora.OptimizerConfig{
		ClusterID:            clusterID,
		Environment:          env,
		IdleThresholdMinutes: idleMinutes,
	}
	return aurora.NewOptimizer(f.rds, f.cw, cfg, f.logger.Logger), f
}

func withConnections(f *optimizerFixture, max float64) {
	f.cw.Datapoints = []cwtypes.Datapoint{{Maximum: aws.Float64(max)}}
}

func modifiedCapacity(t *testing.T, call *rds.ModifyDBClusterInput) (float64, float64) {
	t.Helper()
	require.NotNil(t, call.ServerlessV2ScalingConfiguration)
	return aws.ToFloat64(call.ServerlessV2ScalingConfiguration.MinCapacity),
		aws.ToFloat64(call.ServerlessV2ScalingConfiguration.MaxCapacity)
}

func TestPauseDropsCapacityToFloor(t *testing.T) {
	t.Parallel()
	opt, f := newOptimizer(t, "dev", 30)
	f.rds.AddCluster(clusterID, &fakes.RDSCluster{MinCapacity: 1.0, MaxCapacity: 4.0})

	result, err := opt.Handle(context.Background(), aurora.OptimizerEvent{Action: aurora.ActionPause, Reason: "nightly shutdown"})
	require.NoError(t, err)

	assert.Equal(t, aurora.StatusPaused, result.Status)
	assert.Equal(t, 1.0, result.PreviousMin)
	assert.Equal(t, 4.0, result.PreviousMax)
	assert.Equal(t, 0.5, result.MinCapacity)
	assert.Equal(t, 0.5, result.MaxCapacity)
	assert.Equal(t, "nightly shutdown", result.Reason)

	require.Len(t, f.rds.ModifyCalls, 1)
	min, max := modifiedCapacity(t, f.rds.ModifyCalls[0])
	assert.Equal(t, 0.5, min)
	assert.Equal(t, 0.5, max)
	assert.True(t, aws.ToBool(f.rds.ModifyCalls[0].ApplyImmediately))
}

func TestPauseAlreadyAtFloorIsNoOp(t *testing.T) {
	t.Parallel()
	opt, f := newOptimizer(t, "dev", 30)
	f.rds.AddCluster(clusterID, &fakes.RDSCluster{MinCapacity: 0.5, MaxCapacity: 2.0})

	result, err := opt.Handle(context.Background(), aurora.OptimizerEvent{Action: aurora.ActionPause})
	require.NoError(t, err)

	assert.Equal(t, aurora.StatusAlreadyPaused, result.Status)
	assert.Empty(t, f.rds.ModifyCalls)
}

func TestPauseSkipsClusterNotAvailable(t *testing.T) {
	t.Parallel()
	opt, f := newOptimizer(t, "dev", 30)
	f.rds.AddCluster(clusterID, &fakes.RDSCluster{Status: "backing-up", MinCapacity: 1.0, MaxCapacity: 4.0})

	result, err := opt.Handle(context.Background(), aurora.OptimizerEvent{Action: aurora.ActionPause})
	require.NoError(t, err)

	assert.Equal(t, aurora.StatusSkipped, result.Status)
	assert.Equal(t, "backing-up", result.ClusterStatus)
	assert.Empty(t, f.rds.ModifyCalls)
}

func TestResumeTargetsByEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     string
		wantMin float64
		wantMax float64
	}{
		{name: "prod", env: "prod", wantMin: 2.0, wantMax: 8.0},
		{name: "staging", env: "staging", wantMin: 0.5, wantMax: 2.0},
		{name: "dev", env: "dev", wantMin: 0.5, wantMax: 2.0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opt, f := newOptimizer(t, tt.env, 30)
			f.rds.AddCluster(clusterID, &fakes.RDSCluster{MinCapacity: 0.5, MaxCapacity: 0.5})

			result, err := opt.Handle(context.Background(), aurora.OptimizerEvent{Action: aurora.ActionResume})
			require.NoError(t, err)

			assert.Equal(t, aurora.StatusResumed, result.Status)
			assert.Equal(t, tt.wantMin, result.MinCapacity)
			assert.Equal(t, tt.wantMax, result.MaxCapacity)

			require.Len(t, f.rds.ModifyCalls, 1)
			min, max := modifiedCapacity(t, f.rds.ModifyCalls[0])
			assert.Equal(t, tt.wantMin, min)
			assert.Equal(t, tt.wantMax, max)
		})
	}
}

func TestResumeAlreadyAtTargetIsNoOp(t *testing.T) {
	t.Parallel()
	opt, f := newOptimizer(t, "dev", 30)
	f.rds.AddCluster(clusterID, &fakes.RDSCluster{MinCapacity: 0.5, MaxCapacity: 2.0})

	result, err := opt.Handle(context.Background(), aurora.OptimizerEvent{Action: aurora.ActionResume})
	require.NoError(t, err)

	assert.Equal(t, aurora.StatusAlreadyActive, result.Status)
	assert.Empty(t, f.rds.ModifyCalls)
}

func TestAutoPausesIdleCluster(t *testing.T) {
	t.Parallel()
	opt, f := newOptimizer(t, "dev", 30)
	f.rds.AddCluster(clusterID, &fakes.RDSCluster{MinCapacity: 1.0, MaxCapacity: 4.0})
	// No datapoints: the cluster saw zero connections in the window.

	result, err := opt.Handle(context.Background(), aurora.OptimizerEvent{})
	require.NoError(t, err)

	assert.Equal(t, aurora.StatusPaused, result.Status)
	assert.Equal(t, "Auto-pause: idle for 30 minutes", result.Reason)
	require.Len(t, f.rds.ModifyCalls, 1)
}

func TestAutoResumesPausedClusterWithActivity(t *testing.T) {
	t.Parallel()
	opt, f := newOptimizer(t, "prod", 30)
	f.rds.AddCluster(clusterID, &fakes.RDSCluster{MinCapacity: 0.5, MaxCapacity: 0.5})
	withConnections(f, 3)

	result, err := opt.Handle(context.Background(), aurora.OptimizerEvent{Action: aurora.ActionAuto})
	require.NoError(t, err)

	assert.Equal(t, aurora.StatusResumed, result.Status)
	assert.Equal(t, "Auto-resume: activity detected", result.Reason)
	assert.Equal(t, 2.0, result.MinCapacity)
	assert.Equal(t, 8.0, result.MaxCapacity)
}

func TestAutoLeavesActiveClusterAlone(t *testing.T) {
	t.Parallel()
	opt, f := newOptimizer(t, "dev", 30)
	f.rds.AddCluster(clusterID, &fakes.RDSCluster{MinCapacity: 1.0, MaxCapacity: 4.0})
	withConnections(f, 3)

	result, err := opt.Handle(context.Background(), aurora.OptimizerEvent{})
	require.NoError(t, err)

	assert.Equal(t, aurora.StatusActive, result.Status)
	assert.Equal(t, 3, result.Connections)
	assert.Equal(t, 1.0, result.MinCapacity)
	assert.Equal(t, 4.0, result.MaxCapacity)
	assert.Empty(t, f.rds.ModifyCalls)
}

func TestAutoAssumesActivityWhenMetricsUnreadable(t *testing.T) {
	t.Parallel()
	opt, f := newOptimizer(t, "dev", 30)
	f.rds.AddCluster(clusterID, &fakes.RDSCluster{MinCapacity: 1.0, MaxCapacity: 4.0})
	f.cw.GetMetricStatisticsFunc = func(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput) (*cloudwatch.GetMetricStatisticsOutput, error) {
		return nil, errors.New("throttled")
	}

	result, err := opt.Handle(context.Background(), aurora.OptimizerEvent{})
	require.NoError(t, err)

	assert.Equal(t, aurora.StatusActive, result.Status)
	assert.Empty(t, f.rds.ModifyCalls, "an unreadable metric must never pause the cluster")
	f.logger.AssertContains(t, "read connection metrics")
}

func TestAutoQueriesTheIdleWindow(t *testing.T) {
	t.Parallel()
	opt, f := newOptimizer(t, "dev", 45)
	f.rds.AddCluster(clusterID, &fakes.RDSCluster{MinCapacity: 1.0, MaxCapacity: 4.0})

	var got *cloudwatch.GetMetricStatisticsInput
	f.cw.GetMetricStatisticsFunc = func(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput) (*cloudwatch.GetMetricStatisticsOutput, error) {
		got = params
		return &cloudwatch.GetMetricStatisticsOutput{}, nil
	}

	_, err := opt.Handle(context.Background(), aurora.OptimizerEvent{})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "AWS/RDS", aws.ToString(got.Namespace))
	assert.Equal(t, "DatabaseConnections", aws.ToString(got.MetricName))
	require.Len(t, got.Dimensions, 1)
	assert.Equal(t, "DBClusterIdentifier", aws.ToString(got.Dimensions[0].Name))
	assert.Equal(t, clusterID, aws.ToString(got.Dimensions[0].Value))
	assert.Equal(t, int32(300), aws.ToInt32(got.Period))
	assert.Equal(t, []cwtypes.Statistic{cwtypes.StatisticMaximum}, got.Statistics)

	window := aws.ToTime(got.EndTime).Sub(aws.ToTime(got.StartTime))
	assert.Equal(t, 45.0, window.Minutes())
}

func TestIdleThresholdClampsWithWarning(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		minutes int
		want    string
	}{
		{name: "too low", minutes: 2, want: "Auto-pause: idle for 5 minutes"},
		{name: "too high", minutes: 600, want: "Auto-pause: idle for 240 minutes"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opt, f := newOptimizer(t, "dev", tt.minutes)
			f.rds.AddCluster(clusterID, &fakes.RDSCluster{MinCapacity: 1.0, MaxCapacity: 4.0})

			result, err := opt.Handle(context.Background(), aurora.OptimizerEvent{})
			require.NoError(t, err)

			assert.Equal(t, tt.want, result.Reason)
			f.logger.AssertContains(t, "idle threshold")
		})
	}
}

func TestUnknownActionFails(t *testing.T) {
	t.Parallel()
	opt, f := newOptimizer(t, "dev", 30)
	f.rds.AddCluster(clusterID, &fakes.RDSCluster{MinCapacity: 1.0, MaxCapacity: 4.0})

	_, err := opt.Handle(context.Background(), aurora.OptimizerEvent{Action: "restart"})
	require.ErrorIs(t, err, aurora.ErrInvalidAction)
	assert.Empty(t, f.rds.ModifyCalls)
}

func TestMissingClusterFails(t *testing.T) {
	t.Parallel()
	opt, _ := newOptimizer(t, "dev", 30)

	_, err := opt.Handle(context.Background(), aurora.OptimizerEvent{Action: aurora.ActionPause})
	require.ErrorContains(t, err, "describe cluster")
}

func TestOversizedReasonTruncated(t *testing.T) {
	t.Parallel()
	opt, f := newOptimizer(t, "dev", 30)
	f.rds.AddCluster(clusterID, &fakes.RDSCluster{MinCapacity: 1.0, MaxCapacity: 4.0})

	long := strings.Repeat("x", 600)
	result, err := opt.Handle(context.Background(), aurora.OptimizerEvent{Action: aurora.ActionPause, Reason: long})
	require.NoError(t, err)

	assert.Len(t, result.Reason, 500+len("... (truncated)"))
	assert.True(t, strings.HasSuffix(result.Reason, "... (truncated)"))
	f.logger.AssertContains(t, "reason truncated")
}
