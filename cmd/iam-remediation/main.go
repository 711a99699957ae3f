// Lambda entrypoint for IAM Access Analyzer finding remediation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/accessanalyzer"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/joho/godotenv"

	"github.com/psd401/aistudio.psd401.ai/internal/config"
	"github.com/psd401/aistudio.psd401.ai/internal/logging"
	"github.com/psd401/aistudio.psd401.ai/internal/metrics"
	"github.com/psd401/aistudio.psd401.ai/internal/notify"
	"github.com/psd401/aistudio.psd401.ai/internal/remediation"
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

	cfg, err := remediation.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	clients := remediation.Clients{
		Analyzer: accessanalyzer.NewFromConfig(awsCfg),
		IAM:      iam.NewFromConfig(awsCfg),
		S3:       s3.NewFromConfig(awsCfg),
	}
	publisher := metrics.NewPublisher(cloudwatch.NewFromConfig(awsCfg), "AIStudio/Security", cfg.Environment)
	notifier := notify.NewNotifier(sns.NewFromConfig(awsCfg), config.String("SNS_TOPIC_ARN", ""), logger)

	handler := remediation.NewHandler(cfg, clients, publisher, notifier, logger)
	lambda.Start(handler.Handle)
	return nil
}
