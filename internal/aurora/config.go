package aurora

import (
	"github.com/hengadev/errsx"

	"github.com/psd401/aistudio.psd401.ai/internal/config"
)

// OptimizerConfigFromEnv builds the pause/resume configuration from the
// Lambda environment, aggregating missing variables into one error.
func OptimizerConfigFromEnv() (OptimizerConfig, error) {
	var errs errsx.Map

	cfg := OptimizerConfig{
		IdleThresholdMinutes: config.Int("IDLE_THRESHOLD_MINUTES", defaultIdleThreshold),
	}

	var err error
	if cfg.ClusterID, err = config.Require("CLUSTER_IDENTIFIER"); err != nil {
		errs.Set("CLUSTER_IDENTIFIER", err)
	}
	if cfg.Environment, err = config.Require("ENVIRONMENT"); err != nil {
		errs.Set("ENVIRONMENT", err)
	}

	return cfg, errs.AsError()
}

// ScalerConfigFromEnv builds the predictive scaler configuration from the
// Lambda environment.
func ScalerConfigFromEnv() (ScalerConfig, error) {
	var errs errsx.Map

	cfg := ScalerConfig{
		ScheduleParameter: config.String("SCHEDULE_PARAMETER", ""),
	}

	var err error
	if cfg.ClusterID, err = config.Require("CLUSTER_IDENTIFIER"); err != nil {
		errs.Set("CLUSTER_IDENTIFIER", err)
	}
	if cfg.Environment, err = config.Require("ENVIRONMENT"); err != nil {
		errs.Set("ENVIRONMENT", err)
	}

	return cfg, errs.AsError()
}
