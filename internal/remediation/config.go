package remediation

import (
	"github.com/hengadev/errsx"

	"github.com/psd401/aistudio.psd401.ai/internal/config"
)

// ConfigFromEnv builds the remediation configuration from the Lambda
// environment, aggregating missing variables into one error.
func ConfigFromEnv() (Config, error) {
	var errs errsx.Map

	cfg := Config{
		Environment:   config.String("ENVIRONMENT", "dev"),
		AutoRemediate: config.Bool("AUTO_REMEDIATE", false),
	}

	var err error
	if cfg.AnalyzerARN, err = config.Require("ANALYZER_ARN"); err != nil {
		errs.Set("ANALYZER_ARN", err)
	}

	return cfg, errs.AsError()
}
