package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// KafkaConfig holds producer settings for the notification topic
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	RetryMax int
	Timeout  time.Duration
}

// kafkaEnvelope is the record consumed by the mail worker.
// Attachments are base64 encoded by encoding/json.
type kafkaEnvelope struct {
	ID          string                 `json:"id"`
	To          string                 `json:"to"`
	Subject     string                 `json:"subject"`
	Template    string                 `json:"template"`
	HTMLBody    string                 `json:"html_body"`
	TextBody    string                 `json:"text_body"`
	Context     map[string]interface{} `json:"context"`
	Attachments []Attachment           `json:"attachments,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// KafkaSender hands rendered messages to a Kafka topic for delivery
type KafkaSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaSender connects a synchronous, idempotent producer
func NewKafkaSender(config KafkaConfig) (*KafkaSender, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	saramaConfig.Producer.Retry.Max = config.RetryMax
	if saramaConfig.Producer.Retry.Max == 0 {
		saramaConfig.Producer.Retry.Max = 3
	}
	if config.Timeout > 0 {
		saramaConfig.Producer.Timeout = config.Timeout
	}

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return NewKafkaSenderWithProducer(producer, config.Topic), nil
}

// NewKafkaSenderWithProducer wraps an existing producer
func NewKafkaSenderWithProducer(producer sarama.SyncProducer, topic string) *KafkaSender {
	return &KafkaSender{producer: producer, topic: topic}
}

// GetName returns the sender name
func (s *KafkaSender) GetName() string {
	return "kafka"
}

// Send renders the message and publishes it keyed by recipient
func (s *KafkaSender) Send(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	htmlBody, textBody, err := Render(msg.Template, msg.Context)
	if err != nil {
		return err
	}

	envelope := kafkaEnvelope{
		ID:          fmt.Sprintf("%s-%d", msg.Template, time.Now().UnixNano()),
		To:          msg.To,
		Subject:     msg.Subject,
		Template:    msg.Template,
		HTMLBody:    htmlBody,
		TextBody:    textBody,
		Context:     msg.Context,
		Attachments: msg.Attachments,
		CreatedAt:   time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	record := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(msg.To),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("template"), Value: []byte(msg.Template)},
		},
	}

	if _, _, err := s.producer.SendMessage(record); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Close flushes and closes the producer
func (s *KafkaSender) Close() error {
	return s.producer.Close()
}
