package identity

import (
	"context"
	"sync"
)

type EventKind string

const (
	SignedIn  EventKind = "SIGNED_IN"
	SignedOut EventKind = "SIGNED_OUT"
)

// Event is a session change reported by the auth provider.
type Event struct {
	Kind       EventKind `json:"event"`
	SessionID  string    `json:"session_id"`
	Credential string    `json:"access_token,omitempty"`
}

// Broker fans session events out to subscribers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]*Subscription
	nextID int
}

func NewBroker() *Broker {
	return &Broker{subs: map[int]*Subscription{}}
}

// Subscription delivers events until Unsubscribe is called.
type Subscription struct {
	id     int
	broker *Broker
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (b *Broker) Subscribe(buffer int) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscription{
		id:     b.nextID,
		broker: b,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	b.subs[s.id] = s
	return s
}

func (s *Subscription) Events() <-chan Event  { return s.events }
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s.id)
		s.broker.mu.Unlock()
		close(s.done)
	})
}

// Publish delivers ev to every live subscriber, blocking until each has room
// or ctx ends.
func (b *Broker) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.events <- ev:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
