package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const (
	defaultBatchTimeout = 10 * time.Millisecond
	defaultBatchSize    = 100
)

// MessageWriter is the subset of *kafka.Writer the notifier needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notifications as JSON events. Delivery to users
// (push, email) is left to downstream consumers of the topic.
type KafkaNotifier struct {
	writer     MessageWriter
	propagator propagation.TextMapPropagator
	now        func() time.Time
}

var _ port.Notifier = (*KafkaNotifier)(nil)

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           defaultBatchTimeout,
		BatchSize:              defaultBatchSize,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{
		writer:     writer,
		propagator: propagation.TraceContext{},
		now:        time.Now,
	}
}

type notificationEvent struct {
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	AllUsers     bool              `json:"allUsers"`
	Roles        []domain.Role     `json:"roles,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	EmailSubject string            `json:"emailSubject,omitempty"`
	EmailHTML    string            `json:"emailHtml,omitempty"`
	SentAt       time.Time         `json:"sentAt"`
}

func (k *KafkaNotifier) Notify(ctx context.Context, n port.Notification) error {
	event := notificationEvent{
		Title:    n.Title,
		Message:  n.Message,
		AllUsers: n.Audience.All(),
		Roles:    n.Audience.Roles,
		Data:     n.Data,
		SentAt:   k.now().UTC(),
	}
	if n.Email != nil {
		event.EmailSubject = n.Email.Subject
		event.EmailHTML = n.Email.HTML
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	carrier := propagation.MapCarrier{}
	k.propagator.Inject(ctx, carrier)
	headers := make([]kafka.Header, 0, len(carrier))
	for key, value := range carrier {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	msg := kafka.Message{
		Key:     []byte(n.Data["itemId"]),
		Value:   payload,
		Headers: headers,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
