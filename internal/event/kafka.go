package event

import (
	"context"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
)

type (
	messageReader interface {
		ReadMessage(ctx context.Context) (kafka.Message, error)
		Close() error
	}

	// KafkaSource consumes events from a Kafka topic. Producers key messages
	// by thread so the events of a thread stay ordered in their partition.
	KafkaSource struct {
		reader messageReader
	}
)

func NewKafkaSource(brokers []string, topic, groupID string) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// Next blocks until a message is available. A message key, when set, is the
// thread of the event.
func (s *KafkaSource) Next(ctx context.Context) (Event, error) {
	m, err := s.reader.ReadMessage(ctx)
	if err != nil {
		return Event{}, err
	}
	var e Event
	if err := jsoniter.Unmarshal(m.Value, &e); err != nil {
		return Event{}, fmt.Errorf("event: %w: partition %d offset %d: %v", ErrInvalidEvent, m.Partition, m.Offset, err)
	}
	if len(m.Key) > 0 {
		thread, err := strconv.ParseUint(string(m.Key), 10, 64)
		if err != nil {
			return Event{}, fmt.Errorf("event: %w: partition %d offset %d: bad key %q", ErrInvalidEvent, m.Partition, m.Offset, m.Key)
		}
		e.Thread = thread
	}
	return e, nil
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
