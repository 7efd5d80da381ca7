package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// BusSink publishes each document as JSON to a RabbitMQ topic exchange,
// keyed by URL so a downstream consumer can partition/dedupe on it.
type BusSink struct {
	metadataSink metadata.MetadataSink
	conn         *amqp.Connection
	channel      *amqp.Channel
	topic        string
}

// DialBusSink connects to the first reachable broker in brokers and
// declares topic as a durable topic exchange.
func DialBusSink(metadataSink metadata.MetadataSink, brokers []string, topic string) (*BusSink, error) {
	var lastErr error
	for _, broker := range brokers {
		conn, err := amqp.Dial(broker)
		if err != nil {
			lastErr = err
			continue
		}
		channel, err := conn.Channel()
		if err != nil {
			conn.Close()
			lastErr = err
			continue
		}
		if err := channel.ExchangeDeclare(topic, "topic", true, false, false, false, nil); err != nil {
			channel.Close()
			conn.Close()
			lastErr = err
			continue
		}
		return &BusSink{metadataSink: metadataSink, conn: conn, channel: channel, topic: topic}, nil
	}
	return nil, fmt.Errorf("storage: dial bus brokers %v: %w", brokers, lastErr)
}

// Close releases the channel and connection.
func (b *BusSink) Close() error {
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

func (b *BusSink) Emit(ctx context.Context, doc Document) bool {
	if err := b.publish(ctx, doc); err != nil {
		b.recordError(doc, err)
		return false
	}
	b.metadataSink.RecordArtifact(
		metadata.ArtifactDocument,
		doc.URL,
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, doc.URL)},
	)
	return true
}

func (b *BusSink) EmitBatch(ctx context.Context, docs []Document) EmitReport {
	return emitBatch(ctx, b, docs)
}

func (b *BusSink) publish(ctx context.Context, doc Document) failure.ClassifiedError {
	payload, err := json.Marshal(doc)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseMarshalFailed}
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = b.channel.PublishWithContext(
		publishCtx,
		b.topic,
		doc.URL,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseBusPublishFailed, Path: doc.URL}
	}
	return nil
}

func (b *BusSink) recordError(doc Document, err failure.ClassifiedError) {
	b.metadataSink.RecordError(
		time.Now(),
		"storage",
		"BusSink.Emit",
		metadata.CauseStorageFailure,
		err.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, doc.URL)},
	)
}

var _ Sink = (*BusSink)(nil)
