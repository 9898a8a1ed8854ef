// Package relay publishes carbon ledger events to Kafka. Each event is a
// JSON envelope keyed so that events about the same subject stay ordered
// within a partition.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/id"
	"github.com/xraph/carbon/plugin"
	"github.com/xraph/carbon/retirement"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// DefaultTopic receives every event without a topic override.
const DefaultTopic = "carbon.events"

// Event types carried in Envelope.Type.
const (
	EventCustodianAdmitted = "custodian.admitted"
	EventCustodianRevoked  = "custodian.revoked"
	EventMintRequested     = "mint.requested"
	EventMintApproved      = "mint.approved"
	EventMintDenied        = "mint.denied"
	EventTokenTransferred  = "token.transferred"
	EventTokenRetired      = "token.retired"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Relay)(nil)
	_ plugin.OnShutdown          = (*Relay)(nil)
	_ plugin.OnCustodianAdmitted = (*Relay)(nil)
	_ plugin.OnCustodianRevoked  = (*Relay)(nil)
	_ plugin.OnMintRequested     = (*Relay)(nil)
	_ plugin.OnMintApproved      = (*Relay)(nil)
	_ plugin.OnMintDenied        = (*Relay)(nil)
	_ plugin.OnTokenTransferred  = (*Relay)(nil)
	_ plugin.OnTokenRetired      = (*Relay)(nil)
)

// MessageWriter is the subset of *kafka.Writer the relay uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the wire form of a relayed event.
type Envelope struct {
	ID         id.EventID `json:"id"`
	Type       string     `json:"type"`
	OccurredAt time.Time  `json:"occurred_at"`
	Data       any        `json:"data"`
}

// Relay is a plugin that writes every ledger event to Kafka.
type Relay struct {
	writers []MessageWriter
	topic   string
	topics  map[string]string
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Relay.
type Option func(*Relay)

// WithTopic replaces DefaultTopic.
func WithTopic(topic string) Option {
	return func(r *Relay) { r.topic = topic }
}

// WithEventTopic routes one event type to its own topic.
func WithEventTopic(eventType, topic string) Option {
	return func(r *Relay) { r.topics[eventType] = topic }
}

// WithMirror adds a writer that receives a copy of every event, typically a
// second cluster.
func WithMirror(w MessageWriter) Option {
	return func(r *Relay) { r.writers = append(r.writers, w) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

// WithClock overrides the envelope timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// New creates a Relay writing to w.
func New(w MessageWriter, opts ...Option) *Relay {
	r := &Relay{
		writers: []MessageWriter{w},
		topic:   DefaultTopic,
		topics:  make(map[string]string),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewKafkaWriter returns a writer for brokers that waits for all in-sync
// replicas and partitions by message key. Topics are set per message.
func NewKafkaWriter(brokers ...string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("relay: at least one broker is required")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}, nil
}

// Name implements plugin.Plugin.
func (r *Relay) Name() string { return "kafka-relay" }

// OnShutdown implements plugin.OnShutdown. It closes every writer.
func (r *Relay) OnShutdown(_ context.Context) error {
	var errs []error
	for _, w := range r.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCustodianAdmitted implements plugin.OnCustodianAdmitted.
func (r *Relay) OnCustodianAdmitted(ctx context.Context, c *custodian.Custodian) error {
	return r.publish(ctx, EventCustodianAdmitted, c.Account.String(), c)
}

// OnCustodianRevoked implements plugin.OnCustodianRevoked.
func (r *Relay) OnCustodianRevoked(ctx context.Context, account types.AccountID) error {
	return r.publish(ctx, EventCustodianRevoked, account.String(), map[string]types.AccountID{"account": account})
}

// OnMintRequested implements plugin.OnMintRequested.
func (r *Relay) OnMintRequested(ctx context.Context, p *token.PendingMint) error {
	return r.publish(ctx, EventMintRequested, p.RegistryID, p)
}

// OnMintApproved implements plugin.OnMintApproved.
func (r *Relay) OnMintApproved(ctx context.Context, a *token.Approval) error {
	return r.publish(ctx, EventMintApproved, a.RegistryID, a)
}

// OnMintDenied implements plugin.OnMintDenied.
func (r *Relay) OnMintDenied(ctx context.Context, d *token.Denial) error {
	return r.publish(ctx, EventMintDenied, d.RegistryID, d)
}

// OnTokenTransferred implements plugin.OnTokenTransferred.
func (r *Relay) OnTokenTransferred(ctx context.Context, t *token.Transfer) error {
	return r.publish(ctx, EventTokenTransferred, t.From.String(), t)
}

// OnTokenRetired implements plugin.OnTokenRetired.
func (r *Relay) OnTokenRetired(ctx context.Context, rep *retirement.Report) error {
	return r.publish(ctx, EventTokenRetired, rep.Beneficiary.String(), rep)
}

// ──────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────

func (r *Relay) topicFor(eventType string) string {
	if topic, ok := r.topics[eventType]; ok && topic != "" {
		return topic
	}
	return r.topic
}

// publish writes one envelope to every writer concurrently.
func (r *Relay) publish(ctx context.Context, eventType, key string, data any) error {
	env := Envelope{
		ID:         id.NewEventID(),
		Type:       eventType,
		OccurredAt: r.now().UTC(),
		Data:       data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("relay: encode %s: %w", eventType, err)
	}

	msg := kafka.Message{
		Topic: r.topicFor(eventType),
		Key:   []byte(key),
		Value: payload,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(env.ID.String())},
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range r.writers {
		g.Go(func() error {
			return w.WriteMessages(gctx, msg)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("relay: publish %s: %w", eventType, err)
	}

	r.logger.Debug("relay: event published",
		"event_type", eventType,
		"event_id", env.ID.String(),
		"topic", msg.Topic,
	)
	return nil
}
