// Lambda entrypoint for scheduled Aurora capacity scaling.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"github.com/psd401/aistudio.psd401.ai/internal/aurora"
	"github.com/psd401/aistudio.psd401.ai/internal/config"
	"github.com/psd401/aistudio.psd401.ai/internal/logging"
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

	cfg, err := aurora.ScalerConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	scaler := aurora.NewScaler(rds.NewFromConfig(awsCfg), ssm.NewFromConfig(awsCfg), cfg, logger)
	lambda.Start(scaler.Handle)
	return nil
}
