// Package events publishes operator notifications about blood bank activity.
// Publishing is best effort: a failed notification never fails the
// operation that raised it.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"hemalink/pkg/requestcontext"
)

//go:generate mockgen -source=events.go -destination=mocks/mocks.go -package=mocks Publisher

// Kind names a notification type.
type Kind string

const (
	KindDonorRegistered  Kind = "donor_registered"
	KindRequestSubmitted Kind = "blood_request_submitted"
	KindDonationRecorded Kind = "donation_recorded"
	KindRequestFulfilled Kind = "request_fulfilled"
)

var subjects = map[Kind]string{
	KindDonorRegistered:  "New Donor Registered",
	KindRequestSubmitted: "New Blood Request",
	KindDonationRecorded: "Donation Recorded",
	KindRequestFulfilled: "Request Fulfilled",
}

// Subject is the human readable title of k.
func (k Kind) Subject() string {
	if s, ok := subjects[k]; ok {
		return s
	}
	return string(k)
}

// Notification is one published event.
type Notification struct {
	Kind       Kind      `json:"kind"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	EntityID   string    `json:"entity_id"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps a notification with the request id and time carried by ctx.
func New(ctx context.Context, kind Kind, entityID, message string) Notification {
	return Notification{
		Kind:       kind,
		Subject:    kind.Subject(),
		Message:    message,
		EntityID:   entityID,
		RequestID:  requestcontext.RequestID(ctx),
		OccurredAt: requestcontext.Now(ctx),
	}
}

// Publisher delivers notifications.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// LogPublisher writes notifications to the structured log.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, n Notification) error {
	p.logger.InfoContext(ctx, "notification",
		"kind", string(n.Kind),
		"subject", n.Subject,
		"message", n.Message,
		"entity_id", n.EntityID,
		"request_id", n.RequestID,
	)
	return nil
}

// Producer is the slice of *kgo.Client the Kafka publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher produces notifications as JSON records keyed by entity id,
// so events about one record stay ordered within a partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, n Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(n.EntityID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(n.Kind)},
		},
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

// Multi fans a notification out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, n Notification) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultPublishTimeout bounds one Notify call.
const DefaultPublishTimeout = 5 * time.Second

// Notifier is the best-effort front used by services. Each publish runs on
// its own deadline, detached from the caller's cancellation, so a stalled
// broker delays an operation by at most the timeout.
type Notifier struct {
	publisher Publisher
	logger    *slog.Logger
	timeout   time.Duration
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithPublishTimeout overrides DefaultPublishTimeout. Non-positive values are ignored.
func WithPublishTimeout(d time.Duration) NotifierOption {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// NewNotifier wraps publisher. A nil publisher drops notifications.
func NewNotifier(publisher Publisher, logger *slog.Logger, opts ...NotifierOption) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := &Notifier{publisher: publisher, logger: logger, timeout: DefaultPublishTimeout}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify publishes and logs any failure; it never returns an error.
func (n *Notifier) Notify(ctx context.Context, kind Kind, entityID, message string) {
	if n == nil || n.publisher == nil {
		return
	}
	note := New(ctx, kind, entityID, message)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.publisher.Publish(pubCtx, note); err != nil {
		n.logger.WarnContext(ctx, "notification publish failed",
			"kind", string(kind),
			"entity_id", entityID,
			"error", err,
		)
	}
}
