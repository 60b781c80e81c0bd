package game

import (
	"context"
	"log"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/writtenrealms/writtenrealms"
	"github.com/writtenrealms/writtenrealms/structs"
)

const forwardTimeout = 2 * time.Second

var lastMessageCounter uint64

// Message is the wire form of one published event. Seq is strictly
// increasing across the process, so consumers can reorder messages
// that arrive over different channels.
type Message struct {
	Id   string         `json:"id"`
	Seq  uint64         `json:"seq"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
	Text string         `json:"text,omitempty"`

	raw []byte
}

// Encode returns the JSON encoding, computed once per message.
func (m *Message) Encode() ([]byte, error) {
	if m.raw != nil {
		return m.raw, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	m.raw = raw
	return raw, nil
}

// Transport delivers a message to the sessions of one recipient.
// Recipients without a registered session are silently skipped.
type Transport interface {
	Deliver(recipientKey string, message *Message, connectionID string)
}

// Observer receives every published event exactly once, after
// recipient delivery. Observers run synchronously and must not block.
type Observer func(ctx context.Context, event *structs.GameEvent)

// Forwarder pushes the encoded message to an external consumer.
// Forwarding is best effort and never fails the publish.
type Forwarder func(ctx context.Context, message []byte) error

// Publisher fans one event out to its recipients and the registered
// side channels.
type Publisher struct {
	transport Transport
	observers []Observer
	forwarder Forwarder
}

func NewPublisher(transport Transport) *Publisher {
	return &Publisher{transport: transport}
}

func (p *Publisher) AddObserver(observer Observer) {
	p.observers = append(p.observers, observer)
}

func (p *Publisher) SetForwarder(forwarder Forwarder) {
	p.forwarder = forwarder
}

// Publish delivers the event at most once per recipient, then runs
// the observers once per event. The recipient list may repeat keys;
// duplicates collapse here, at the fan-out edge.
func (p *Publisher) Publish(ctx context.Context, event *structs.GameEvent) error {
	message := &Message{
		Id:   uuid.NewString(),
		Seq:  writtenrealms.Increment(&lastMessageCounter),
		Type: event.Type,
		Data: event.Data,
		Text: event.Text,
	}
	if _, err := message.Encode(); err != nil {
		return errors.WithStack(err)
	}
	seen := map[string]bool{}
	for _, recipient := range event.Recipients {
		if seen[recipient] {
			continue
		}
		seen[recipient] = true
		p.transport.Deliver(recipient, message, event.ConnectionID)
	}
	for _, observer := range p.observers {
		observer(ctx, event)
	}
	if p.forwarder != nil {
		p.forward(message)
	}
	return nil
}

func (p *Publisher) forward(message *Message) {
	raw, err := message.Encode()
	if err != nil {
		return
	}
	forwarder := p.forwarder
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
		defer cancel()
		if err := forwarder(ctx, raw); err != nil {
			log.Printf("forwarding event %s: %v", message.Type, err)
		}
	}()
}

// SubscriptionHub lets other systems listen for published event
// types. Every published event is pushed here exactly once via a
// publisher observer.
type SubscriptionHub struct {
	mutex       sync.RWMutex
	subscribers map[string][]func(context.Context, *structs.GameEvent)
}

func NewSubscriptionHub() *SubscriptionHub {
	return &SubscriptionHub{subscribers: map[string][]func(context.Context, *structs.GameEvent){}}
}

// Subscribe registers a callback for one event type. The empty type
// subscribes to all events.
func (h *SubscriptionHub) Subscribe(eventType string, callback func(context.Context, *structs.GameEvent)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.subscribers[eventType] = append(h.subscribers[eventType], callback)
}

// Notify pushes the event to the subscribers of its type and to the
// catch-all subscribers.
func (h *SubscriptionHub) Notify(ctx context.Context, event *structs.GameEvent) {
	h.mutex.RLock()
	callbacks := append([]func(context.Context, *structs.GameEvent){}, h.subscribers[event.Type]...)
	callbacks = append(callbacks, h.subscribers[""]...)
	h.mutex.RUnlock()
	for _, callback := range callbacks {
		callback(ctx, event)
	}
}
