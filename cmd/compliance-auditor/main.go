// Lambda entrypoint for the secrets compliance auditor.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/joho/godotenv"

	"github.com/psd401/aistudio.psd401.ai/internal/compliance"
	"github.com/psd401/aistudio.psd401.ai/internal/config"
	"github.com/psd401/aistudio.psd401.ai/internal/logging"
	"github.com/psd401/aistudio.psd401.ai/internal/metrics"
	"github.com/psd401/aistudio.psd401.ai/internal/notify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	logger := logging.New(config.Bool("DEBUG", false))
	cfg := compliance.ConfigFromEnv()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	namespace := fmt.Sprintf("%s/SecretsCompliance", cfg.ProjectName)
	publisher := metrics.NewPublisher(cloudwatch.NewFromConfig(awsCfg), namespace, cfg.Environment)
	notifier := notify.NewNotifier(sns.NewFromConfig(awsCfg), config.String("SNS_TOPIC_ARN", ""), logger)

	auditor := compliance.NewAuditor(secretsmanager.NewFromConfig(awsCfg), cfg, publisher, notifier, logger)
	lambda.Start(auditor.Handle)
	return nil
}
