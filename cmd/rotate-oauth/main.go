// Lambda entrypoint for OAuth client secret rotation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"

	"github.com/psd401/aistudio.psd401.ai/internal/config"
	"github.com/psd401/aistudio.psd401.ai/internal/logging"
	"github.com/psd401/aistudio.psd401.ai/internal/rotation"
	"github.com/psd401/aistudio.psd401.ai/internal/secretstore"
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

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	var opts []secretstore.Option
	if endpoint := config.String("SECRETS_MANAGER_ENDPOINT", ""); endpoint != "" {
		opts = append(opts, secretstore.WithEndpoint(endpoint))
		key := config.String("SECRETS_MANAGER_ACCESS_KEY_ID", "")
		secret := config.String("SECRETS_MANAGER_SECRET_ACCESS_KEY", "")
		opts = append(opts, secretstore.WithStaticCredentials(key, secret))
	}
	store := secretstore.New(awsCfg, opts...)

	strategy := rotation.NewOAuthStrategy(logger)
	lambda.Start(rotation.NewExecutor(store, strategy, logger).Handle)
	return nil
}
