package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"storefront-offers/internal/events"
	"storefront-offers/internal/features"
	"storefront-offers/internal/models"
)

// DefaultTopic receives every offer change.
const DefaultTopic = "offer-changes"

// ErrBacklogFull is returned when the producer's input buffer cannot take
// another message. The message is dropped.
var ErrBacklogFull = errors.New("kafka producer backlog is full")

// OfferChangeMessage is the JSON value written to Kafka.
type OfferChangeMessage struct {
	EventID    string        `json:"event_id"`
	Type       string        `json:"type"`
	Profile    string        `json:"profile"`
	DrawID     string        `json:"draw_id,omitempty"`
	Offer      *models.Offer `json:"offer"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewAsyncProducer creates a Sarama AsyncProducer that waits for all replicas
// and reports successes as well as errors.
func NewAsyncProducer(brokers []string) (sarama.AsyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	return sarama.NewAsyncProducer(brokers, config)
}

// OfferChangePublisher forwards offer events to a Kafka topic, keyed by profile.
// Handle only enqueues; delivery results are consumed in the background.
type OfferChangePublisher struct {
	producer sarama.AsyncProducer
	topic    string
	flags    *features.Manager
	logger   zerolog.Logger

	sent   atomic.Int64
	failed atomic.Int64
	done   chan struct{}
}

// NewOfferChangePublisher creates a publisher writing to topic through producer
// and starts draining its delivery reports.
func NewOfferChangePublisher(producer sarama.AsyncProducer, topic string, flags *features.Manager, logger zerolog.Logger) *OfferChangePublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	p := &OfferChangePublisher{
		producer: producer,
		topic:    topic,
		flags:    flags,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go p.drain()
	return p
}

// Attach subscribes the publisher to every offer event and returns the
// function that detaches it.
func (p *OfferChangePublisher) Attach(em *events.Manager) func() {
	unsubs := []func(){
		em.Subscribe(events.EventOfferActivated, p.Handle),
		em.Subscribe(events.EventOfferCleared, p.Handle),
		em.Subscribe(events.EventOfferDrawn, p.Handle),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Handle is an events.Handler enqueueing one message per event. It never
// waits on the broker.
func (p *OfferChangePublisher) Handle(ctx context.Context, e events.Event) error {
	if !p.flags.IsEnabled(features.FeatureEventHooksEnabled) {
		return nil
	}

	msg, err := toMessage(e)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal offer change: %w", err)
	}

	select {
	case p.producer.Input() <- &sarama.ProducerMessage{
		Topic:    p.topic,
		Key:      sarama.StringEncoder(msg.Profile),
		Value:    sarama.ByteEncoder(data),
		Metadata: msg.Type,
	}:
		return nil
	default:
		p.failed.Add(1)
		p.logger.Warn().Str("event", msg.Type).Str("profile", msg.Profile).Msg("kafka backlog full, offer change dropped")
		return ErrBacklogFull
	}
}

// drain consumes delivery reports until the producer closes both channels.
func (p *OfferChangePublisher) drain() {
	defer close(p.done)

	successes, errs := p.producer.Successes(), p.producer.Errors()
	for successes != nil || errs != nil {
		select {
		case m, ok := <-successes:
			if !ok {
				successes = nil
				continue
			}
			p.sent.Add(1)
			p.logger.Debug().
				Interface("event", m.Metadata).
				Int32("partition", m.Partition).
				Int64("offset", m.Offset).
				Msg("offer change sent")
		case perr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.failed.Add(1)
			p.logger.Error().Err(perr.Err).Interface("event", perr.Msg.Metadata).Msg("failed to write offer change to kafka")
		}
	}
}

// Stats returns how many messages were delivered and how many failed or were dropped.
func (p *OfferChangePublisher) Stats() (sent, failed int64) {
	return p.sent.Load(), p.failed.Load()
}

// Close flushes buffered messages, closes the producer and waits for the
// remaining delivery reports. Handle must not be called afterwards.
func (p *OfferChangePublisher) Close() error {
	p.producer.AsyncClose()
	<-p.done
	return nil
}

func toMessage(e events.Event) (OfferChangeMessage, error) {
	msg := OfferChangeMessage{
		EventID:    e.ID,
		Type:       string(e.Type),
		OccurredAt: e.Timestamp,
	}

	switch data := e.Data.(type) {
	case events.OfferChangedData:
		msg.Profile = data.Profile
		msg.Offer = data.Offer
	case events.OfferDrawnData:
		offer := data.Offer
		msg.Profile = data.Profile
		msg.DrawID = data.DrawID
		msg.Offer = &offer
	default:
		return msg, fmt.Errorf("unexpected payload %T for %s", e.Data, e.Type)
	}
	return msg, nil
}
