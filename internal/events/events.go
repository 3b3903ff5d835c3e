package events

import (
	"context"
	"encoding/json"
	"reasondesk/config"
	"reasondesk/internal/database"
	"reasondesk/internal/logger"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const channelPrefix = "events:"

const (
	ChannelCaseRecord = "case_record"
	ChannelFeedback   = "feedback"
	ChannelTag        = "tag"
	ChannelAdmin      = "admin"
)

type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Channel   string         `json:"channel,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(channel, eventType, userID string, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Channel:   channel,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

type Handler func(event Event)

// EventBus fans domain events out to in-process subscribers. With a cache
// client events travel through valkey pub/sub so every server instance sees
// them; without one they are delivered in-process. A nil *EventBus drops
// everything.
type EventBus struct {
	client database.CacheClient
	log    logger.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler

	cancel context.CancelFunc
	done   chan struct{}
}

func New(client database.CacheClient, config config.Config) *EventBus {
	log := logger.New("eventBus")

	bus := &EventBus{
		client:   client,
		log:      log,
		handlers: make(map[string][]Handler),
	}

	if client != nil {
		ctx, cancel := context.WithCancel(context.Background())
		bus.cancel = cancel
		bus.done = make(chan struct{})
		go bus.receive(ctx)
	}

	log.Function("New").Info("event bus ready", "distributed", client != nil, "environment", config.Environment)
	return bus
}

// Subscribe registers handler for channel. "*" receives every channel.
func (b *EventBus) Subscribe(channel string, handler Handler) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], handler)
}

func (b *EventBus) Publish(channel string, event Event) error {
	if b == nil {
		return nil
	}
	log := b.log.Function("Publish")

	if event.Channel == "" {
		event.Channel = channel
	}

	if b.client == nil {
		b.dispatch(channel, event)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return log.Err("failed to marshal event", err, "channel", channel, "type", event.Type)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := b.client.B().Publish().Channel(channelPrefix + channel).Message(string(payload)).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return log.Err("failed to publish event", err, "channel", channel, "type", event.Type)
	}

	return nil
}

func (b *EventBus) receive(ctx context.Context) {
	log := b.log.Function("receive")
	defer close(b.done)

	for ctx.Err() == nil {
		err := b.client.Receive(ctx, b.client.B().Psubscribe().Pattern(channelPrefix+"*").Build(),
			func(msg valkey.PubSubMessage) {
				var event Event
				if err := json.Unmarshal([]byte(msg.Message), &event); err != nil {
					log.Er("failed to decode event", err, "channel", msg.Channel)
					return
				}
				b.dispatch(strings.TrimPrefix(msg.Channel, channelPrefix), event)
			})
		if err != nil && ctx.Err() == nil {
			log.Er("subscription ended, retrying", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (b *EventBus) dispatch(channel string, event Event) {
	b.mu.RLock()
	handlers := append([]Handler{}, b.handlers[channel]...)
	handlers = append(handlers, b.handlers["*"]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (b *EventBus) Close() error {
	if b == nil || b.cancel == nil {
		return nil
	}

	b.cancel()
	<-b.done
	return nil
}
