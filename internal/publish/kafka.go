package publish

import (
	"context"
	"fmt"

	"github.com/Shopify/sarama"

	"microgrid/internal/types"
)

// NewKafkaConfig returns the producer configuration used for tick events.
// SyncProducer requires Return.Successes.
func NewKafkaConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Compression = sarama.CompressionZSTD
	cfg.Version = sarama.V2_1_0_0
	return cfg
}

// KafkaSink writes each tick to a topic, keyed by tick ID.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaSink creates a sink writing to topic.
func NewKafkaSink(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

// Name implements Sink.
func (s *KafkaSink) Name() string { return "kafka" }

// Publish sends res and waits for the broker acknowledgement.
func (s *KafkaSink) Publish(_ context.Context, res types.DispatchResult) error {
	msg, err := encodeTick(res)
	if err != nil {
		return err
	}
	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     s.topic,
		Key:       sarama.StringEncoder(res.TickID),
		Value:     sarama.ByteEncoder(msg),
		Timestamp: res.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("producing to %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
