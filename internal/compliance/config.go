package compliance

import "github.com/psd401/aistudio.psd401.ai/internal/config"

// ConfigFromEnv builds the auditor configuration from the Lambda
// environment. Every variable has a default.
func ConfigFromEnv() Config {
	return Config{
		ProjectName:  config.String("PROJECT_NAME", "AIStudio"),
		Environment:  config.String("ENVIRONMENT", "dev"),
		MaxSecretAge: config.Int("MAX_SECRET_AGE", 90),
	}
}
