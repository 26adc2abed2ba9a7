package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"ridehail/internal/domain"
)

// KafkaPositionStream publishes driver positions keyed by driver id, so all
// reports of one driver land on one partition in order.
type KafkaPositionStream struct {
	writer *kafka.Writer
}

// NewKafkaPositionStream creates a writer for topic on brokers.
func NewKafkaPositionStream(brokers []string, topic string) *KafkaPositionStream {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	})
	return &KafkaPositionStream{writer: w}
}

// PublishPosition writes one position message.
func (k *KafkaPositionStream) PublishPosition(ctx context.Context, pos domain.DriverPosition) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	b, err := encodePosition(pos)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(pos.DriverID), Value: b})
}

// Close flushes and closes the writer.
func (k *KafkaPositionStream) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
