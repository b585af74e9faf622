package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storefront-offers/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventOfferActivated is emitted when a profile's active offer is replaced
	EventOfferActivated EventType = "offer.activated"
	// EventOfferCleared is emitted when a profile's active offer is removed
	EventOfferCleared EventType = "offer.cleared"
	// EventOfferDrawn is emitted after every draw, fillers included
	EventOfferDrawn EventType = "offer.drawn"
)

// Event represents an event in the system.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// OfferChangedData is the payload of activation and clear events.
// Offer is nil when the active offer was cleared.
type OfferChangedData struct {
	Profile string
	Offer   *models.Offer
}

// OfferDrawnData is the payload of draw events.
type OfferDrawnData struct {
	Profile   string
	DrawID    string
	Offer     models.Offer
	FirstTime bool
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

type subscription struct {
	id      uint64
	handler Handler
}

// Manager fans events out to subscribers synchronously, in subscription order.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription
	nextID   uint64
	enabled  bool
	logger   zerolog.Logger
}

// NewManager creates a new event manager.
func NewManager(enabled bool, logger zerolog.Logger) *Manager {
	return &Manager{
		handlers: make(map[EventType][]subscription),
		enabled:  enabled,
		logger:   logger,
	}
}

// Subscribe registers handler for eventType and returns a function removing it.
func (m *Manager) Subscribe(eventType EventType, handler Handler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return func() {}
	}

	m.nextID++
	id := m.nextID
	m.handlers[eventType] = append(m.handlers[eventType], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { m.remove(eventType, id) })
	}
}

func (m *Manager) remove(eventType EventType, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			kept := make([]subscription, 0, len(subs)-1)
			kept = append(kept, subs[:i]...)
			kept = append(kept, subs[i+1:]...)
			m.handlers[eventType] = kept
			return
		}
	}
}

// Publish delivers an event to every handler before returning.
// Handler errors are logged and do not stop delivery to the rest.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	m.mu.RLock()
	enabled := m.enabled
	subs := m.handlers[eventType]
	m.mu.RUnlock()

	if !enabled || len(subs) == 0 {
		return
	}

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	for _, s := range subs {
		if err := s.handler(ctx, event); err != nil {
			m.logger.Warn().Err(err).Str("event", string(eventType)).Str("event_id", event.ID).Msg("event handler failed")
		}
	}
}

// PublishOfferActivated publishes an activation event.
func (m *Manager) PublishOfferActivated(ctx context.Context, profile string, offer models.Offer) {
	m.Publish(ctx, EventOfferActivated, OfferChangedData{Profile: profile, Offer: &offer})
}

// PublishOfferCleared publishes a clear event.
func (m *Manager) PublishOfferCleared(ctx context.Context, profile string) {
	m.Publish(ctx, EventOfferCleared, OfferChangedData{Profile: profile})
}

// PublishOfferDrawn publishes a draw event.
func (m *Manager) PublishOfferDrawn(ctx context.Context, data OfferDrawnData) {
	m.Publish(ctx, EventOfferDrawn, data)
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]subscription)
}
