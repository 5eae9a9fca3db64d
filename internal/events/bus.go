package events

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Topic identifies a logical channel on the bus.
type Topic string

const (
	// TopicPlaybackState carries PlaybackState payloads as buttons move
	// through generating, playing, stopped and error.
	TopicPlaybackState Topic = "playback.state"
	// TopicCacheChanged carries CacheChange payloads when stored audio is
	// written, swept or cleared.
	TopicCacheChanged Topic = "cache.changed"
	// TopicSettingsChanged fires after the settings document is replaced.
	TopicSettingsChanged Topic = "settings.changed"
)

// Envelope wraps every message published on the bus.
type Envelope struct {
	Topic     Topic
	Timestamp time.Time
	Payload   any
}

// PlaybackState is the payload for TopicPlaybackState.
type PlaybackState struct {
	ButtonID string `json:"buttonId"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

// Playback states published on TopicPlaybackState.
const (
	StateGenerating = "generating"
	StatePlaying    = "playing"
	StateStopped    = "stopped"
	StateError      = "error"
)

// CacheChange is the payload for TopicCacheChanged.
type CacheChange struct {
	Op       string `json:"op"` // "stored", "deleted", "swept", "cleared"
	ButtonID string `json:"buttonId,omitempty"`
	Removed  int64  `json:"removed,omitempty"`
}

// Bus is a topic-based publish/subscribe hub. Delivery never blocks the
// publisher: when a subscriber's channel is full the oldest event is
// dropped to make room, so slow consumers see the newest state.
type Bus struct {
	logger      *log.Logger
	mu          sync.RWMutex
	subscribers map[Topic]map[uint64]*Subscription
	nextID      uint64
}

// New constructs an empty bus.
func New(opts ...BusOption) *Bus {
	bus := &Bus{
		logger:      log.Default(),
		subscribers: make(map[Topic]map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// BusOption customises bus behaviour.
type BusOption func(*Bus)

// WithLogger overrides the logger used for drop warnings.
func WithLogger(logger *log.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Publish sends payload to every subscriber of topic. A nil bus is a no-op
// so components can treat the bus as optional.
func (b *Bus) Publish(topic Topic, payload any) {
	if b == nil || topic == "" {
		return
	}
	env := Envelope{Topic: topic, Timestamp: time.Now().UTC(), Payload: payload}

	b.mu.RLock()
	for _, sub := range b.subscribers[topic] {
		sub.deliver(env, b.logger)
	}
	b.mu.RUnlock()
}

// Subscribe registers a consumer for the given topic.
// If b is nil the returned Subscription has a closed channel and Close is a no-op.
func (b *Bus) Subscribe(topic Topic, opts ...SubscriptionOption) *Subscription {
	if b == nil {
		ch := make(chan Envelope)
		close(ch)
		sub := &Subscription{ch: ch}
		sub.closed.Store(true)
		return sub
	}

	cfg := subscriptionConfig{bufferSize: defaultBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}

	id := atomic.AddUint64(&b.nextID, 1)
	sub := &Subscription{
		topic: topic,
		id:    id,
		name:  cfg.name,
		ch:    make(chan Envelope, cfg.bufferSize),
		bus:   b,
	}

	b.mu.Lock()
	if _, exists := b.subscribers[topic]; !exists {
		b.subscribers[topic] = make(map[uint64]*Subscription)
	}
	b.subscribers[topic][id] = sub
	b.mu.Unlock()

	return sub
}

// Shutdown closes all subscriptions and empties routing tables.
func (b *Bus) Shutdown() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subscribers {
		for id, sub := range subs {
			if sub.closed.CompareAndSwap(false, true) {
				close(sub.ch)
			}
			delete(subs, id)
		}
		delete(b.subscribers, topic)
	}
}

const defaultBuffer = 64

// SubscriptionOption customises individual subscriptions.
type SubscriptionOption func(*subscriptionConfig)

type subscriptionConfig struct {
	bufferSize int
	name       string
}

// WithSubscriptionBuffer overrides the channel buffer for a subscription.
func WithSubscriptionBuffer(size int) SubscriptionOption {
	return func(cfg *subscriptionConfig) {
		if size > 0 {
			cfg.bufferSize = size
		}
	}
}

// WithSubscriptionName records a human friendly identifier used in logs.
func WithSubscriptionName(name string) SubscriptionOption {
	return func(cfg *subscriptionConfig) {
		cfg.name = name
	}
}

// Subscription represents a consumer listening to a topic.
type Subscription struct {
	topic Topic
	id    uint64
	name  string
	ch    chan Envelope

	bus     *Bus
	closed  atomic.Bool
	dropped atomic.Uint64
}

// C exposes the event channel.
func (s *Subscription) C() <-chan Envelope {
	return s.ch
}

// Close removes the subscription and closes the channel.
func (s *Subscription) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.bus == nil {
		return
	}

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if subs, ok := s.bus.subscribers[s.topic]; ok {
		delete(subs, s.id)
	}
	close(s.ch)
}

func (s *Subscription) deliver(env Envelope, logger *log.Logger) {
	if s.closed.Load() {
		return
	}

	select {
	case s.ch <- env:
		return
	default:
	}

	// Channel full: drop the oldest event to make room.
	select {
	case <-s.ch:
		s.recordDrop(logger)
	default:
	}

	select {
	case s.ch <- env:
	default:
		s.recordDrop(logger)
	}
}

func (s *Subscription) recordDrop(logger *log.Logger) {
	count := s.dropped.Add(1)
	if logger != nil {
		name := s.name
		if name == "" {
			name = "subscription"
		}
		logger.Printf("[Events] dropped event #%d for %s on topic %s", count, name, s.topic)
	}
}
