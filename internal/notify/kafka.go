package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

// Producer is the subset of *kafka.Writer used here.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSender publishes messages as JSON to one topic, keyed by Message.Key.
type KafkaSender struct {
	producer Producer
	topic    string
}

// NewKafkaSender constructs a sender writing to topic. The producer must not
// have a fixed topic of its own.
func NewKafkaSender(producer Producer, topic string) *KafkaSender {
	return &KafkaSender{producer: producer, topic: topic}
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = s.producer.WriteMessages(ctx, kafka.Message{
		Topic: s.topic,
		Key:   []byte(msg.Key),
		Value: data,
		Time:  msg.At,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", msg.Kind, s.topic, err)
	}
	return nil
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewWriter returns a topic-less writer so one connection pool can serve
// several KafkaSenders.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}
