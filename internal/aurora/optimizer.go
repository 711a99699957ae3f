package aurora

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
)

// Optimizer actions.
const (
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionAuto   = "auto"
)

// ErrInvalidAction reports an action outside pause/resume/auto.
var ErrInvalidAction = errors.New("invalid action")

// pausedCapacity is the floor configuration that stands in for a pause:
// Serverless v2 has no real pause API, so both bounds drop to 0.5 ACU.
const pausedCapacity = 0.5

// Idle-threshold bounds in minutes.
const (
	defaultIdleThreshold = 30
	minIdleThreshold     = 5
	maxIdleThreshold     = 240
)

// connectionPeriodSeconds is the CloudWatch statistics period.
const connectionPeriodSeconds = 300

// MetricsAPI is the CloudWatch subset the optimizer reads connection
// statistics from.
type MetricsAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// OptimizerConfig is the pause/resume handler's environment-derived
// configuration.
type OptimizerConfig struct {
	ClusterID   string
	Environment string
	// IdleThresholdMinutes is how long the cluster must be connection-free
	// before an auto pause.
	IdleThresholdMinutes int
}

// OptimizerEvent triggers a pause, resume, or auto check. An empty action
// means auto.
type OptimizerEvent struct {
	Action string `json:"action,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// OptimizerResult reports what the optimizer did.
type OptimizerResult struct {
	Status        string  `json:"status"`
	ClusterStatus string  `json:"clusterStatus,omitempty"`
	PreviousMin   float64 `json:"previousMin,omitempty"`
	PreviousMax   float64 `json:"previousMax,omitempty"`
	MinCapacity   float64 `json:"minCapacity,omitempty"`
	MaxCapacity   float64 `json:"maxCapacity,omitempty"`
	Connections   int     `json:"connections,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// Optimizer pauses idle clusters and resumes active ones.
type Optimizer struct {
	rds     RDSAPI
	metrics MetricsAPI
	cfg     OptimizerConfig
	logger  *logging.Logger
	now     func() time.Time
}

// NewOptimizer wires the pause/resume optimizer. Out-of-range idle
// thresholds clamp to [5, 240] minutes with a warning.
func NewOptimizer(rdsClient RDSAPI, metricsClient MetricsAPI, cfg OptimizerConfig, logger *logging.Logger) *Optimizer {
	if cfg.IdleThresholdMinutes < minIdleThreshold {
		logger.Warn("idle threshold %d minutes too low, using minimum %d", cfg.IdleThresholdMinutes, minIdleThreshold)
		cfg.IdleThresholdMinutes = minIdleThreshold
	}
	if cfg.IdleThresholdMinutes > maxIdleThreshold {
		logger.Warn("idle threshold %d minutes too high, using maximum %d", cfg.IdleThresholdMinutes, maxIdleThreshold)
		cfg.IdleThresholdMinutes = maxIdleThreshold
	}
	return &Optimizer{
		rds:     rdsClient,
		metrics: metricsClient,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle is the Lambda entrypoint.
func (o *Optimizer) Handle(ctx context.Context, event OptimizerEvent) (*OptimizerResult, error) {
	reason := sanitizeReason(o.logger, event.Reason, "Manual invocation")

	action := event.Action
	if action == "" {
		action = ActionAuto
	}

	switch action {
	case ActionPause:
		return o.pause(ctx, reason)
	case ActionResume:
		return o.resume(ctx, reason)
	case ActionAuto:
		return o.autoCheck(ctx, reason)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, event.Action)
	}
}

func (o *Optimizer) pause(ctx context.Context, reason string) (*OptimizerResult, error) {
	state, err := describeCluster(ctx, o.rds, o.cfg.ClusterID)
	if err != nil {
		return nil, err
	}
	if state.status != clusterAvailable {
		o.logger.Warn("cluster %s is %s, skipping pause", o.cfg.ClusterID, state.status)
		return &OptimizerResult{Status: StatusSkipped, ClusterStatus: state.status, Reason: reason}, nil
	}
	if state.min == pausedCapacity {
		o.logger.Info("cluster %s already at minimum capacity", o.cfg.ClusterID)
		return &OptimizerResult{Status: StatusAlreadyPaused, MinCapacity: state.min, MaxCapacity: state.max}, nil
	}

	if err := modifyCapacity(ctx, o.rds, o.cfg.ClusterID, pausedCapacity, pausedCapacity); err != nil {
		return nil, err
	}

	o.logger.Info("cluster %s paused, capacity %g-%g -> %g-%g ACU: %s",
		o.cfg.ClusterID, state.min, state.max, pausedCapacity, pausedCapacity, reason)
	return &OptimizerResult{
		Status:      StatusPaused,
		PreviousMin: state.min,
		PreviousMax: state.max,
		MinCapacity: pausedCapacity,
		MaxCapacity: pausedCapacity,
		Reason:      reason,
	}, nil
}

func (o *Optimizer) resume(ctx context.Context, reason string) (*OptimizerResult, error) {
	state, err := describeCluster(ctx, o.rds, o.cfg.ClusterID)
	if err != nil {
		return nil, err
	}
	if state.status != clusterAvailable {
		o.logger.Warn("cluster %s is %s, skipping resume", o.cfg.ClusterID, state.status)
		return &OptimizerResult{Status: StatusSkipped, ClusterStatus: state.status, Reason: reason}, nil
	}

	targetMin, targetMax := o.resumeTargets()
	if state.min == targetMin && state.max == targetMax {
		o.logger.Info("cluster %s already at target capacity %g-%g ACU", o.cfg.ClusterID, targetMin, targetMax)
		return &OptimizerResult{Status: StatusAlreadyActive, MinCapacity: targetMin, MaxCapacity: targetMax, Reason: reason}, nil
	}

	if err := modifyCapacity(ctx, o.rds, o.cfg.ClusterID, targetMin, targetMax); err != nil {
		return nil, err
	}

	o.logger.Info("cluster %s resumed to %g-%g ACU: %s", o.cfg.ClusterID, targetMin, targetMax, reason)
	return &OptimizerResult{
		Status:      StatusResumed,
		PreviousMin: state.min,
		PreviousMax: state.max,
		MinCapacity: targetMin,
		MaxCapacity: targetMax,
		Reason:      reason,
	}, nil
}

func (o *Optimizer) resumeTargets() (float64, float64) {
	if o.cfg.Environment == "prod" {
		return 2.0, 8.0
	}
	return 0.5, 2.0
}

func (o *Optimizer) autoCheck(ctx context.Context, reason string) (*OptimizerResult, error) {
	o.logger.Info("running auto pause check: %s", reason)

	connections := o.connectionCount(ctx)
	if connections == 0 {
		return o.pause(ctx, fmt.Sprintf("Auto-pause: idle for %d minutes", o.cfg.IdleThresholdMinutes))
	}

	state, err := describeCluster(ctx, o.rds, o.cfg.ClusterID)
	if err != nil {
		return nil, err
	}
	if state.min == pausedCapacity && state.max == pausedCapacity {
		o.logger.Info("cluster %s paused but has %d connections, resuming", o.cfg.ClusterID, connections)
		return o.resume(ctx, "Auto-resume: activity detected")
	}

	o.logger.Info("cluster %s active with %d connections, no action", o.cfg.ClusterID, connections)
	return &OptimizerResult{
		Status:      StatusActive,
		MinCapacity: state.min,
		MaxCapacity: state.max,
		Connections: connections,
		Reason:      reason,
	}, nil
}

// connectionCount returns the maximum DatabaseConnections over the idle
// window. Unreadable metrics count as one connection: never pause on
// missing data.
func (o *Optimizer) connectionCount(ctx context.Context) int {
	end := o.now().UTC()
	start := end.Add(-time.Duration(o.cfg.IdleThresholdMinutes) * time.Minute)

	out, err := o.metrics.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String("AWS/RDS"),
		MetricName: aws.String("DatabaseConnections"),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("DBClusterIdentifier"), Value: aws.String(o.cfg.ClusterID)},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(connectionPeriodSeconds),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticMaximum},
	})
	if err != nil {
		o.logger.Error("read connection metrics: %v", err)
		return 1
	}

	if len(out.Datapoints) == 0 {
		o.logger.Info("no connection datapoints in last %d minutes", o.cfg.IdleThresholdMinutes)
		return 0
	}

	max := 0.0
	for _, point := range out.Datapoints {
		if v := aws.ToFloat64(point.Maximum); v > max {
			max = v
		}
	}
	o.logger.Info("max connections in last %d minutes: %g", o.cfg.IdleThresholdMinutes, max)
	return int(max)
}
