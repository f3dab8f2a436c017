package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type Type string

const (
	GroupCreated        Type = "group.created"
	JoinRequestCreated  Type = "join_request.created"
	JoinRequestAccepted Type = "join_request.accepted"
	JoinRequestDenied   Type = "join_request.denied"
	MessageSent         Type = "message.sent"
)

// Event is a fact that already happened and was committed. Key decides the
// partition, so events about the same aggregate stay ordered.
type Event struct {
	Type       Type      `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func New(t Type, key string, payload any) Event {
	return Event{Type: t, Key: key, OccurredAt: time.Now().UTC(), Payload: payload}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	addrs := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka: empty topic")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return &KafkaPublisher{w: w}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

func encode(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}, nil
}
