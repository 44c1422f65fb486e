package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/segmentio/kafka-go"

	"github.com/smukkama/drone-defense/internal/protocol"
)

// ErrMalformedAlert marks a message that is not a usable alert.
var ErrMalformedAlert = errors.New("malformed alert message")

// Producer wraps a Kafka producer
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // Partition by drone id
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Name identifies the producer in logs.
func (p *Producer) Name() string {
	return "kafka:" + p.writer.Topic
}

// Publish sends a message to Kafka
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// PublishAlert encodes and sends an alert keyed by drone id.
func (p *Producer) PublishAlert(ctx context.Context, alert *protocol.AlertNotification) error {
	data, err := protocol.EncodeAlertNotification(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	return p.Publish(ctx, alert.DroneID, data)
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer wraps a Kafka consumer
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0, // commit explicitly after processing
			StartOffset:    kafka.FirstOffset,
		}),
	}
}

// Consume reads messages from Kafka
func (c *Consumer) Consume(ctx context.Context) (kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to fetch message: %w", err)
	}
	return msg, nil
}

// FetchAlert reads the next message and decodes it as an alert. The message
// is returned even when decoding fails so the caller can commit past it.
func (c *Consumer) FetchAlert(ctx context.Context) (kafka.Message, *protocol.AlertNotification, error) {
	msg, err := c.Consume(ctx)
	if err != nil {
		return msg, nil, err
	}
	alert, err := DecodeAlert(msg)
	return msg, alert, err
}

// DecodeAlert decodes an alert message. Messages of another type or without
// a drone id are rejected with ErrMalformedAlert.
func DecodeAlert(msg kafka.Message) (*protocol.AlertNotification, error) {
	alert, err := protocol.DecodeAlertNotification(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("%w at %d/%d: %v", ErrMalformedAlert, msg.Partition, msg.Offset, err)
	}
	if alert.Type != protocol.AlertTypeIntrusion {
		return nil, fmt.Errorf("%w at %d/%d: unknown type %q", ErrMalformedAlert, msg.Partition, msg.Offset, alert.Type)
	}
	if alert.DroneID == "" {
		return nil, fmt.Errorf("%w at %d/%d: missing drone id", ErrMalformedAlert, msg.Partition, msg.Offset)
	}
	if alert.DroneName == "" {
		alert.DroneName = alert.DroneID
	}
	return alert, nil
}

// Commit commits message offsets
func (c *Consumer) Commit(ctx context.Context, msgs ...kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Stats returns consumer statistics
func (c *Consumer) Stats() kafka.ReaderStats {
	return c.reader.Stats()
}

// CreateTopic creates a Kafka topic with the specified number of partitions
func CreateTopic(brokers []string, topic string, numPartitions int, replicationFactor int) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}

	log.WithFields(log.Fields{
		"topic":      topic,
		"partitions": numPartitions,
	}).Info("created kafka topic")
	return nil
}
