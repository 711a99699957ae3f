// Package notify sends operator alerts through SNS.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
)

// SNS caps subjects at 100 characters and rejects longer ones.
const maxSubjectLength = 100

// SNSAPI is the SNS subset the notifier uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier publishes alerts to one SNS topic. An empty topic ARN disables
// it: sends succeed without calling SNS, so handlers never need to branch
// on whether alerting is configured.
type Notifier struct {
	client   SNSAPI
	topicARN string
	logger   *logging.Logger
}

// NewNotifier creates a notifier for the topic. topicARN may be empty.
func NewNotifier(client SNSAPI, topicARN string, logger *logging.Logger) *Notifier {
	return &Notifier{client: client, topicARN: topicARN, logger: logger}
}

// Enabled reports whether sends reach SNS.
func (n *Notifier) Enabled() bool {
	return n.topicARN != ""
}

// Send publishes one alert.
func (n *Notifier) Send(ctx context.Context, subject, message string) error {
	if !n.Enabled() {
		n.logger.Debug("sns notifier disabled, dropping alert %q", subject)
		return nil
	}

	if len(subject) > maxSubjectLength {
		subject = subject[:maxSubjectLength]
	}

	_, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("publish alert to %s: %w", n.topicARN, err)
	}

	n.logger.Info("sns alert published: %s", subject)
	return nil
}
