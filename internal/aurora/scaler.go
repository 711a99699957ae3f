package aurora

import (
	"context"
	"encoding/json"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
)

// acuHourlyRate is the Aurora Serverless v2 list price per ACU-hour in USD.
const acuHourlyRate = 0.12

// SSMAPI is the Systems Manager subset the scaler reads its schedule from.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ScalerConfig is the predictive scaler's environment-derived configuration.
type ScalerConfig struct {
	ClusterID   string
	Environment string
	// ScheduleParameter names an optional SSM parameter holding JSON
	// {minCapacity, maxCapacity} for the current schedule window.
	ScheduleParameter string
}

// ScaleEvent requests a capacity change. Absent capacities fall back to
// the schedule parameter, then to environment defaults.
type ScaleEvent struct {
	MinCapacity *float64 `json:"minCapacity,omitempty"`
	MaxCapacity *float64 `json:"maxCapacity,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// CostImpact estimates the monthly cost change of a scaling operation,
// priced at the capacity ceiling.
type CostImpact struct {
	CurrentDaily   float64 `json:"currentDaily"`
	NewDaily       float64 `json:"newDaily"`
	CurrentMonthly float64 `json:"currentMonthly"`
	NewMonthly     float64 `json:"newMonthly"`
	MonthlyDelta   float64 `json:"monthlyDelta"`
	Direction      string  `json:"direction"`
}

// ScaleResult reports what the scaler did.
type ScaleResult struct {
	Status      string      `json:"status"`
	PreviousMin float64     `json:"previousMin,omitempty"`
	PreviousMax float64     `json:"previousMax,omitempty"`
	MinCapacity float64     `json:"minCapacity"`
	MaxCapacity float64     `json:"maxCapacity"`
	Reason      string      `json:"reason,omitempty"`
	CostImpact  *CostImpact `json:"costImpact,omitempty"`
}

// Scaler applies scheduled or requested capacity targets to the cluster.
type Scaler struct {
	rds    RDSAPI
	ssm    SSMAPI
	cfg    ScalerConfig
	logger *logging.Logger
}

// NewScaler wires the predictive scaler.
func NewScaler(rdsClient RDSAPI, ssmClient SSMAPI, cfg ScalerConfig, logger *logging.Logger) *Scaler {
	return &Scaler{rds: rdsClient, ssm: ssmClient, cfg: cfg, logger: logger}
}

// Handle is the Lambda entrypoint.
func (s *Scaler) Handle(ctx context.Context, event ScaleEvent) (*ScaleResult, error) {
	reason := sanitizeReason(s.logger, event.Reason, "Scheduled scaling")

	targetMin, targetMax := s.targetCapacity(ctx, event)

	state, err := describeCluster(ctx, s.rds, s.cfg.ClusterID)
	if err != nil {
		return nil, err
	}

	if state.min == targetMin && state.max == targetMax {
		s.logger.Info("cluster %s already at %g-%g ACU", s.cfg.ClusterID, targetMin, targetMax)
		return &ScaleResult{
			Status:      StatusNoChange,
			MinCapacity: targetMin,
			MaxCapacity: targetMax,
			Reason:      reason,
		}, nil
	}

	if err := modifyCapacity(ctx, s.rds, s.cfg.ClusterID, targetMin, targetMax); err != nil {
		return nil, err
	}

	impact := costImpact(state.max, targetMax)
	s.logger.Info("cluster %s scaled %g-%g -> %g-%g ACU (%s monthly delta %.2f USD): %s",
		s.cfg.ClusterID, state.min, state.max, targetMin, targetMax, impact.Direction, impact.MonthlyDelta, reason)
	return &ScaleResult{
		Status:      StatusScaled,
		PreviousMin: state.min,
		PreviousMax: state.max,
		MinCapacity: targetMin,
		MaxCapacity: targetMax,
		Reason:      reason,
		CostImpact:  &impact,
	}, nil
}

// targetCapacity resolves each bound independently: explicit event value,
// then the schedule parameter, then the environment default.
func (s *Scaler) targetCapacity(ctx context.Context, event ScaleEvent) (float64, float64) {
	min, max := event.MinCapacity, event.MaxCapacity

	if (min == nil || max == nil) && s.cfg.ScheduleParameter != "" {
		if sched := s.scheduledCapacity(ctx); sched != nil {
			if min == nil {
				min = sched.MinCapacity
			}
			if max == nil {
				max = sched.MaxCapacity
			}
		}
	}

	targetMin, targetMax := s.environmentDefaults()
	if min != nil {
		targetMin = *min
	}
	if max != nil {
		targetMax = *max
	}

	targetMin = s.validateCapacity(targetMin, "minimum")
	targetMax = s.validateCapacity(targetMax, "maximum")
	if targetMax < targetMin {
		s.logger.Warn("max capacity %g below min %g, raising max to match", targetMax, targetMin)
		targetMax = targetMin
	}

	s.logger.Info("target capacity %g-%g ACU", targetMin, targetMax)
	return targetMin, targetMax
}

func (s *Scaler) environmentDefaults() (float64, float64) {
	if s.cfg.Environment == "prod" {
		return 1.0, 16.0
	}
	return 0.5, 4.0
}

type scheduleCapacity struct {
	MinCapacity *float64 `json:"minCapacity"`
	MaxCapacity *float64 `json:"maxCapacity"`
}

// scheduledCapacity reads the schedule parameter. An unreadable or
// malformed parameter degrades to the environment defaults.
func (s *Scaler) scheduledCapacity(ctx context.Context) *scheduleCapacity {
	out, err := s.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(s.cfg.ScheduleParameter),
	})
	if err != nil {
		s.logger.Warn("read schedule parameter %s: %v", s.cfg.ScheduleParameter, err)
		return nil
	}

	var value string
	if out.Parameter != nil {
		value = aws.ToString(out.Parameter.Value)
	}

	var sched scheduleCapacity
	if err := json.Unmarshal([]byte(value), &sched); err != nil {
		s.logger.Warn("parse schedule parameter %s: %v", s.cfg.ScheduleParameter, err)
		return nil
	}
	return &sched
}

// validateCapacity clamps to the ACU bounds and rounds to the 0.5 steps
// Serverless v2 accepts.
func (s *Scaler) validateCapacity(capacity float64, kind string) float64 {
	if capacity < minACU {
		s.logger.Warn("%s capacity %g too low, using %g ACU", kind, capacity, minACU)
		return minACU
	}
	if capacity > maxACU {
		s.logger.Warn("%s capacity %g too high, using %g ACU", kind, capacity, maxACU)
		return maxACU
	}
	rounded := math.Round(capacity*2) / 2
	if rounded != capacity {
		s.logger.Info("%s capacity %g rounded to %g ACU", kind, capacity, rounded)
	}
	return rounded
}

func costImpact(currentMax, newMax float64) CostImpact {
	currentDaily := currentMax * 24 * acuHourlyRate
	newDaily := newMax * 24 * acuHourlyRate
	currentMonthly := currentDaily * 30
	newMonthly := newDaily * 30
	delta := round2(newMonthly - currentMonthly)

	direction := "unchanged"
	switch {
	case delta < 0:
		direction = "savings"
	case delta > 0:
		direction = "increase"
	}

	return CostImpact{
		CurrentDaily:   round2(currentDaily),
		NewDaily:       round2(newDaily),
		CurrentMonthly: round2(currentMonthly),
		NewMonthly:     round2(newMonthly),
		MonthlyDelta:   delta,
		Direction:      direction,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
