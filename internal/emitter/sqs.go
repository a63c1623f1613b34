package emitter

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	sqsMaxTries       = 3
	sqsMaxElapsedTime = 30 * time.Second
)

// SQSAPI is the part of the SQS client the emitter needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSEmitter publishes the JSON summary of every run to a queue.
type SQSEmitter struct {
	client   SQSAPI
	queueURL string
	backOff  backoff.BackOff
}

// NewSQSEmitter creates an emitter publishing to queueURL.
func NewSQSEmitter(client SQSAPI, queueURL string) *SQSEmitter {
	return &SQSEmitter{
		client:   client,
		queueURL: queueURL,
		backOff:  backoff.NewExponentialBackOff(),
	}
}

// Emit sends the summary as one message. Send failures are retried a few
// times; a summary that cannot be encoded is not.
func (e *SQSEmitter) Emit(ctx context.Context, summary *Summary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	output, err := backoff.Retry(ctx, func() (*sqs.SendMessageOutput, error) {
		return e.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(e.queueURL),
			MessageBody: aws.String(string(body)),
		})
	},
		backoff.WithBackOff(e.backOff),
		backoff.WithMaxTries(sqsMaxTries),
		backoff.WithMaxElapsedTime(sqsMaxElapsedTime),
	)
	if err != nil {
		return fmt.Errorf("send summary to %s: %w", e.queueURL, err)
	}

	log.Debug().
		Str("queue_url", e.queueURL).
		Str("message_id", aws.ToString(output.MessageId)).
		Int("reports", len(summary.Reports)).
		Msg("run summary published")
	return nil
}

// Close is a no-op; the SQS client holds no connection.
func (e *SQSEmitter) Close() error {
	return nil
}
