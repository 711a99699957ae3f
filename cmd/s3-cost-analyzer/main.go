// Lambda entrypoint for the S3 storage cost analyzer.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/joho/godotenv"

	"github.com/psd401/aistudio.psd401.ai/internal/config"
	"github.com/psd401/aistudio.psd401.ai/internal/logging"
	"github.com/psd401/aistudio.psd401.ai/internal/metrics"
	"github.com/psd401/aistudio.psd401.ai/internal/notify"
	"github.com/psd401/aistudio.psd401.ai/internal/s3cost"
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
	cfg := s3cost.ConfigFromEnv()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	environment := config.String("ENVIRONMENT", "dev")
	publisher := metrics.NewPublisher(cloudwatch.NewFromConfig(awsCfg), "AIStudio/S3Optimization", environment)
	notifier := notify.NewNotifier(sns.NewFromConfig(awsCfg), config.String("SNS_TOPIC_ARN", ""), logger)

	analyzer := s3cost.NewAnalyzer(costexplorer.NewFromConfig(awsCfg), cfg, publisher, notifier, logger)
	lambda.Start(analyzer.Handle)
	return nil
}
