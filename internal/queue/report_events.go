// Package queue publishes accepted outbreak reports to SQS for downstream
// consumers: the ingest pipeline for queued reports and human review for
// pending ones.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Queues holds the destination URL per acceptance status. An empty URL
// disables publishing for that status.
type Queues struct {
	Ingest string
	Review string
}

// ReportEventPublisher implements outbreak.EventPublisher over SQS.
//
// Routing:
//   - queued         -> Ingest queue
//   - pending_review -> Review queue
type ReportEventPublisher struct {
	client SQSSender
	queues Queues
	logger *slog.Logger
}

var _ outbreak.EventPublisher = (*ReportEventPublisher)(nil)

// NewReportEventPublisher creates a publisher sending through client.
func NewReportEventPublisher(client SQSSender, queues Queues, logger *slog.Logger) *ReportEventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportEventPublisher{client: client, queues: queues, logger: logger}
}

func (p *ReportEventPublisher) queueURL(status types.ReportStatus) string {
	if status == types.StatusPendingReview {
		return p.queues.Review
	}
	return p.queues.Ingest
}

// PublishReportAccepted sends event as JSON with status, crop, and source
// message attributes so consumers can filter without parsing the body.
func (p *ReportEventPublisher) PublishReportAccepted(ctx context.Context, event types.ReportEvent) error {
	queueURL := p.queueURL(event.Status)
	if queueURL == "" {
		p.logger.DebugContext(ctx, "no queue configured for report status, event dropped",
			"report_id", event.ReportID,
			"status", string(event.Status),
		)
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal ReportEvent: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"status": stringAttr(string(event.Status)),
			"crop":   stringAttr(string(event.Crop)),
			"source": stringAttr(string(event.Source)),
		},
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to send report event to %s", queueURL), err)
	}

	p.logger.InfoContext(ctx, "report event sent",
		"queue_url", queueURL,
		"report_id", event.ReportID,
		"status", string(event.Status),
		"geohash5", event.Geohash5,
	)
	return nil
}

func stringAttr(v string) sqsTypes.MessageAttributeValue {
	return sqsTypes.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}
