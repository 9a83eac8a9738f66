package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"microgrid/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// AlertMessage is the queue body for newly raised urgent alerts.
type AlertMessage struct {
	TickID     string        `json:"tick_id"`
	Timestamp  time.Time     `json:"timestamp"`
	SoCPercent float64       `json:"soc_percent"`
	Alerts     []types.Alert `json:"alerts"`
}

// SQSAlertSink forwards high-priority alerts to a queue for paging. Alerts
// are regenerated every tick, so only those absent from the previous tick
// are sent; a condition that persists is reported once.
type SQSAlertSink struct {
	client      SQSSender
	queueURL    string
	minPriority int

	mu   sync.Mutex
	seen map[string]bool
}

// NewSQSAlertSink creates a sink forwarding alerts at or above minPriority.
func NewSQSAlertSink(client SQSSender, queueURL string, minPriority int) *SQSAlertSink {
	return &SQSAlertSink{
		client:      client,
		queueURL:    queueURL,
		minPriority: minPriority,
		seen:        map[string]bool{},
	}
}

// Name implements Sink.
func (s *SQSAlertSink) Name() string { return "sqs" }

// Publish sends one message holding the urgent alerts raised by res.
func (s *SQSAlertSink) Publish(ctx context.Context, res types.DispatchResult) error {
	s.mu.Lock()
	current := make(map[string]bool)
	var raised []types.Alert
	for _, a := range res.Alerts {
		if a.Priority < s.minPriority {
			continue
		}
		key := string(a.Category) + "/" + a.Title
		current[key] = true
		if !s.seen[key] {
			raised = append(raised, a)
		}
	}
	previous := s.seen
	s.seen = current
	s.mu.Unlock()

	if len(raised) == 0 {
		return nil
	}

	body, err := json.Marshal(AlertMessage{
		TickID:     res.TickID,
		Timestamp:  res.Timestamp,
		SoCPercent: res.Battery.SoCPercent,
		Alerts:     raised,
	})
	if err != nil {
		return fmt.Errorf("alert sink: failed to marshal message: %w", err)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		// Report these alerts again on the next tick.
		s.mu.Lock()
		s.seen = previous
		s.mu.Unlock()
		return fmt.Errorf("alert sink: failed to send message to %s: %w", s.queueURL, err)
	}
	return nil
}
