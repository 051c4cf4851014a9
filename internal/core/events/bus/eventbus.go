// Package bus is an in-process pub/sub bus carrying asset and entity
// change notifications between the asset library, the scene and the editor
// link.
package bus

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	AssetSaved    = "asset.saved"
	AssetReloaded = "asset.reloaded"
	AssetDeleted  = "asset.deleted"
	EntityApplied = "entity.applied"
)

// Event describes one change. Asset is set for asset events, Entity for
// entity events.
type Event struct {
	Type   string
	Source string
	Time   time.Time
	Asset  uuid.UUID
	Entity uuid.UUID
	Name   string
}

func NewAssetEvent(typ, source string, id uuid.UUID, name string) Event {
	return Event{Type: typ, Source: source, Time: time.Now(), Asset: id, Name: name}
}

func NewEntityEvent(typ, source string, id uuid.UUID, name string) Event {
	return Event{Type: typ, Source: source, Time: time.Now(), Entity: id, Name: name}
}

type Handler func(Event) error

// Subscription is a registered handler. Cancel is safe to call repeatedly.
type Subscription struct {
	id        uuid.UUID
	eventType string
	bus       *Bus
}

func (s *Subscription) ID() uuid.UUID     { return s.id }
func (s *Subscription) EventType() string { return s.eventType }

func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	if m := s.bus.handlers[s.eventType]; m != nil {
		delete(m, s.id)
	}
	s.bus.mu.Unlock()
}

// Metrics are cumulative counters.
type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
}

// Bus delivers events synchronously on the publishing goroutine. A nil *Bus
// accepts and drops every event and never delivers to its subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]map[uuid.UUID]Handler
	order    map[uuid.UUID]uint64
	next     uint64
	metrics  Metrics
}

func New() *Bus {
	return &Bus{
		handlers: make(map[string]map[uuid.UUID]Handler),
		order:    make(map[uuid.UUID]uint64),
	}
}

// Subscribe registers h for eventType. On a nil *Bus it returns a
// subscription that is already cancelled.
func (b *Bus) Subscribe(eventType string, h Handler) *Subscription {
	if b == nil {
		return &Subscription{eventType: eventType}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[uuid.UUID]Handler)
	}
	id := uuid.New()
	b.handlers[eventType][id] = h
	b.next++
	b.order[id] = b.next
	return &Subscription{id: id, eventType: eventType, bus: b}
}

// Publish calls every handler of e.Type in subscription order and joins
// their errors.
func (b *Bus) Publish(e Event) error {
	if b == nil {
		return nil
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	type entry struct {
		seq uint64
		h   Handler
	}
	subs := make([]entry, 0, len(b.handlers[e.Type]))
	for id, h := range b.handlers[e.Type] {
		subs = append(subs, entry{b.order[id], h})
	}
	b.mu.RUnlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].seq < subs[j].seq })

	var errs []error
	for _, s := range subs {
		if err := s.h(e); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)

	b.mu.Lock()
	b.metrics.Published++
	b.metrics.DeliveredHandlers += uint64(len(subs))
	if err != nil {
		b.metrics.Errors++
	}
	b.mu.Unlock()
	return err
}

// PublishAsync publishes on a new goroutine; the channel receives the
// joined handler error and is then closed.
func (b *Bus) PublishAsync(e Event) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- b.Publish(e)
		close(ch)
	}()
	return ch
}

func (b *Bus) Metrics() Metrics {
	if b == nil {
		return Metrics{}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}
