package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RegionImportQueue receives one event per committed import batch.
const RegionImportQueue = "region_import_events"

// RegionsImportedEvent summarizes a committed bulk import for downstream
// consumers (map tile refresh, audit).
type RegionsImportedEvent struct {
	BatchID            string `json:"batch_id"`
	Created            int    `json:"created"`
	SkippedMissingName int    `json:"skipped_missing_name"`
	SkippedDuplicate   int    `json:"skipped_duplicate"`
}

// ImportPublisher publishes import batch events to RabbitMQ
type ImportPublisher struct {
	conn              *RabbitMQConnection
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

// NewImportPublisher creates a new import event publisher
func NewImportPublisher(conn *RabbitMQConnection) *ImportPublisher {
	return &ImportPublisher{
		conn:            conn,
		lastPublishTime: time.Now(),
	}
}

// PublishRegionsImported publishes one import summary to the region_import_events queue
func (p *ImportPublisher) PublishRegionsImported(ctx context.Context, event RegionsImportedEvent) error {
	// Ensure the queue exists
	_, err := p.conn.Channel.QueueDeclare(
		RegionImportQueue, // queue name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to marshal import event: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",                // exchange
		RegionImportQueue, // routing key (queue name)
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to publish import event: %w", err)
	}

	p.messagesPublished++
	p.lastPublishTime = time.Now()

	slog.Info("Import event published",
		"queue", RegionImportQueue,
		"batch_id", event.BatchID,
		"created", event.Created,
	)

	return nil
}
