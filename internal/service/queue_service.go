package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shopdesk/jobtickets/internal/clock"
	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/events"
	"github.com/shopdesk/jobtickets/internal/repository"
)

// QueueItem is one pending ticket as shown on the queue.
type QueueItem struct {
	Ticket         domain.Ticket `json:"ticket"`
	ServiceLabel   string        `json:"service_label"`
	Summary        string        `json:"summary"`
	MinutesWaiting int           `json:"minutes_waiting"`
	Waiting        string        `json:"waiting"`
}

// QueueGroup holds the tickets of one priority, oldest first.
type QueueGroup struct {
	Priority domain.TicketPriority `json:"priority"`
	Items    []QueueItem           `json:"items"`
}

// QueueSnapshot is the full work queue of a tenant at a moment.
type QueueSnapshot struct {
	TenantID    string       `json:"tenant_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Groups      []QueueGroup `json:"groups"`
	// Upcoming lists appointments whose time has not come yet, soonest first.
	Upcoming []QueueItem `json:"upcoming"`
	Total    int         `json:"total"`
}

// QueueService projects pending tickets into the live queue.
type QueueService struct {
	tickets  repository.TicketRepository
	catalogs *CatalogService
	feed     events.ChangeFeed
	clock    clock.Clock
	logger   *zap.Logger
}

// QueueDependencies bundles requirements for the queue.
type QueueDependencies struct {
	TicketRepo repository.TicketRepository
	Catalogs   *CatalogService
	Feed       events.ChangeFeed
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewQueueService constructs the service.
func NewQueueService(deps QueueDependencies) *QueueService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueService{
		tickets:  deps.TicketRepo,
		catalogs: deps.Catalogs,
		feed:     deps.Feed,
		clock:    clk,
		logger:   logger,
	}
}

// Snapshot loads the caller's pending tickets grouped by priority. Every
// role may view the queue.
func (s *QueueService) Snapshot(ctx context.Context, identity domain.Identity) (*QueueSnapshot, error) {
	if err := authorize(identity); err != nil {
		return nil, err
	}
	return s.load(ctx, identity.TenantID)
}

func (s *QueueService) load(ctx context.Context, tenantID string) (*QueueSnapshot, error) {
	pending, err := s.tickets.ListPending(ctx, tenantID)
	if err != nil {
		return nil, storeErr(err, "could not load the queue, try again")
	}
	cat, err := s.catalogs.For(ctx, tenantID)
	if err != nil {
		return nil, storeErr(err, "could not load the queue, try again")
	}
	return BuildSnapshot(tenantID, pending, s.clock.Now(), cat), nil
}

// Labeler names and summarizes service types.
type Labeler interface {
	Label(slug string) string
	Summarize(slug string, data domain.ServiceData) string
}

// BuildSnapshot groups pending tickets. Tickets of other tenants, completed
// tickets, and deleted tickets are ignored.
func BuildSnapshot(tenantID string, tickets []domain.Ticket, now time.Time, labels Labeler) *QueueSnapshot {
	snap := &QueueSnapshot{TenantID: tenantID, GeneratedAt: now, Upcoming: []QueueItem{}}
	byPriority := make(map[domain.TicketPriority][]QueueItem, len(domain.PriorityOrder))

	for _, t := range tickets {
		if t.TenantID != tenantID || t.Status != domain.TicketStatusPending || t.DeletedAt != nil {
			continue
		}
		waited := now.Sub(t.CreatedAt)
		if waited < 0 {
			waited = 0
		}
		item := QueueItem{
			Ticket:         t,
			ServiceLabel:   labels.Label(t.ServiceType),
			Summary:        labels.Summarize(t.ServiceType, t.ServiceData),
			MinutesWaiting: int(waited / time.Minute),
			Waiting:        FormatElapsed(waited),
		}
		if t.IsUpcoming(now) {
			snap.Upcoming = append(snap.Upcoming, item)
			continue
		}
		priority := t.Priority
		if !priority.Valid() {
			priority = domain.TicketPriorityNormal
		}
		byPriority[priority] = append(byPriority[priority], item)
		snap.Total++
	}

	for _, priority := range domain.PriorityOrder {
		items := byPriority[priority]
		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i].Ticket, items[j].Ticket
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.TicketNumber < b.TicketNumber
		})
		if items == nil {
			items = []QueueItem{}
		}
		snap.Groups = append(snap.Groups, QueueGroup{Priority: priority, Items: items})
	}
	sort.SliceStable(snap.Upcoming, func(i, j int) bool {
		return snap.Upcoming[i].Ticket.ScheduledTime.Before(*snap.Upcoming[j].Ticket.ScheduledTime)
	})
	return snap
}

// Watch delivers a snapshot immediately and a fresh one after ticket
// changes in the caller's business. Notifications that arrive while a
// reload is running collapse into one further reload. fn is never called
// concurrently. The returned function stops the watch and may be called
// more than once.
func (s *QueueService) Watch(ctx context.Context, identity domain.Identity, fn func(*QueueSnapshot)) (func(), error) {
	if err := authorize(identity); err != nil {
		return nil, err
	}

	sub, err := s.feed.Subscribe(ctx, identity.TenantID)
	if err != nil {
		return nil, storeErr(err, "could not watch the queue, try again")
	}

	first, err := s.load(ctx, identity.TenantID)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(first)
		for {
			select {
			case <-watchCtx.Done():
				return
			case _, ok := <-sub.C():
				if !ok {
					return
				}
				drain(sub.C())
				snap, err := s.load(watchCtx, identity.TenantID)
				if err != nil {
					if watchCtx.Err() != nil {
						return
					}
					// Keep showing the last snapshot; the next change retries.
					s.logger.Warn("queue reload failed", zap.String("tenant_id", identity.TenantID), zap.Error(err))
					continue
				}
				if watchCtx.Err() != nil {
					return
				}
				fn(snap)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = sub.Close()
			<-done
		})
	}, nil
}

// drain discards notifications already queued; one reload covers them.
func drain(ch <-chan events.Change) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
