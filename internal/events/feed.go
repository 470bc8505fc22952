package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Change is a coarse "tickets of this tenant changed" notification.
// Subscribers reload instead of applying deltas.
type Change struct {
	TenantID string    `json:"tenant_id"`
	TicketID string    `json:"ticket_id,omitempty"`
	Type     EventType `json:"type"`
	At       time.Time `json:"at"`
}

// Subscription delivers changes for one tenant until closed.
type Subscription interface {
	C() <-chan Change
	Close() error
}

// ChangeFeed fans ticket changes out to every watcher of a tenant.
type ChangeFeed interface {
	Notify(ctx context.Context, change Change) error
	// Subscribe returns once the subscription is live, so no change
	// published afterwards is missed.
	Subscribe(ctx context.Context, tenantID string) (Subscription, error)
}

const subscriptionBuffer = 16

// deliver never blocks. A full buffer already holds a pending change, which
// guarantees the subscriber reloads at least once more.
func deliver(ch chan Change, change Change) {
	select {
	case ch <- change:
	default:
	}
}

// ForwardToFeed publishes every ticket event on the change feed.
func ForwardToFeed(dispatcher Dispatcher, feed ChangeFeed) {
	for _, eventType := range TicketEventTypes {
		dispatcher.Subscribe(eventType, func(ctx context.Context, event Event) error {
			return feed.Notify(ctx, Change{
				TenantID: event.TenantID,
				TicketID: event.TicketID,
				Type:     event.Type,
				At:       event.Timestamp,
			})
		})
	}
}

// MemoryFeed is an in-process change feed.
type MemoryFeed struct {
	mu   sync.Mutex
	subs map[string]map[*memorySubscription]struct{}
}

// NewMemoryFeed creates an empty feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[*memorySubscription]struct{})}
}

type memorySubscription struct {
	feed     *MemoryFeed
	tenantID string
	ch       chan Change
	once     sync.Once
}

func (s *memorySubscription) C() <-chan Change { return s.ch }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs[s.tenantID], s)
		if len(s.feed.subs[s.tenantID]) == 0 {
			delete(s.feed.subs, s.tenantID)
		}
		close(s.ch)
		s.feed.mu.Unlock()
	})
	return nil
}

func (f *MemoryFeed) Notify(_ context.Context, change Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs[change.TenantID] {
		deliver(sub.ch, change)
	}
	return nil
}

func (f *MemoryFeed) Subscribe(_ context.Context, tenantID string) (Subscription, error) {
	sub := &memorySubscription{feed: f, tenantID: tenantID, ch: make(chan Change, subscriptionBuffer)}
	f.mu.Lock()
	if f.subs[tenantID] == nil {
		f.subs[tenantID] = make(map[*memorySubscription]struct{})
	}
	f.subs[tenantID][sub] = struct{}{}
	f.mu.Unlock()
	return sub, nil
}

// Subscribers reports the live subscription count for a tenant.
func (f *MemoryFeed) Subscribers(tenantID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[tenantID])
}

// RedisFeed distributes changes over Redis pub/sub so every API instance
// sees every write.
type RedisFeed struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisFeed builds a feed on client.
func NewRedisFeed(client *redis.Client, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{client: client, logger: logger}
}

func channelName(tenantID string) string {
	return "tickets:" + tenantID
}

func (f *RedisFeed) Notify(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, channelName(change.TenantID), payload).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context, tenantID string) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, channelName(tenantID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{pubsub: pubsub, ch: make(chan Change, subscriptionBuffer), done: make(chan struct{})}
	go sub.pump(f.logger)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan Change
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) pump(logger *zap.Logger) {
	defer close(s.ch)
	messages := s.pubsub.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				logger.Warn("discarding malformed change", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			deliver(s.ch, change)
		}
	}
}

func (s *redisSubscription) C() <-chan Change { return s.ch }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
