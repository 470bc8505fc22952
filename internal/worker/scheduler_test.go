package worker

import (
	"context"
	"testing"
	"time"

	"github.com/shopdesk/jobtickets/internal/clock"
	"github.com/shopdesk/jobtickets/internal/config"
	"github.com/shopdesk/jobtickets/internal/domain"
)

type fakeTenants struct {
	list func(ctx context.Context) ([]domain.Tenant, error)
}

func (f fakeTenants) ListActive(ctx context.Context) ([]domain.Tenant, error) { return f.list(ctx) }

type fakeAppointments struct {
	between func(ctx context.Context, tenantID string, from, to time.Time) ([]domain.Ticket, error)
}

func (f fakeAppointments) ListScheduledBetween(ctx context.Context, tenantID string, from, to time.Time) ([]domain.Ticket, error) {
	return f.between(ctx, tenantID, from, to)
}

type recordingReminder struct {
	sent []string
	when []string
}

func (r *recordingReminder) SendAppointmentReminder(_ context.Context, _ *domain.Tenant, ticket domain.Ticket, when string) error {
	r.sent = append(r.sent, ticket.ID)
	r.when = append(r.when, when)
	return nil
}

func TestRunRemindersSendsOncePerTicket(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	clk := clock.Fake(now)
	at := now.Add(30 * time.Minute)
	var gotFrom, gotTo time.Time

	reminder := &recordingReminder{}
	s := NewScheduler(config.SchedulerConfig{ReminderLeadMins: 60}, SchedulerDependencies{
		Tenants: fakeTenants{list: func(context.Context) ([]domain.Tenant, error) {
			return []domain.Tenant{{ID: "t1", Slug: "shop", Name: "Shop", Timezone: "UTC"}}, nil
		}},
		Tickets: fakeAppointments{between: func(_ context.Context, tenantID string, from, to time.Time) ([]domain.Ticket, error) {
			gotFrom, gotTo = from, to
			return []domain.Ticket{{ID: "k1", TenantID: tenantID, ScheduledTime: &at, CustomerPhone: "555-123-4567"}}, nil
		}},
		Reminder: reminder,
		Clock:    clk,
	})

	for range 2 {
		if err := s.RunReminders(context.Background()); err != nil {
			t.Fatalf("run reminders: %v", err)
		}
	}
	if len(reminder.sent) != 1 {
		t.Fatalf("expected one reminder, got %d", len(reminder.sent))
	}
	if reminder.when[0] != "2:30 PM" {
		t.Fatalf("unexpected time text %q", reminder.when[0])
	}
	if !gotFrom.Equal(now) || !gotTo.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected range %s - %s", gotFrom, gotTo)
	}
}

type fakeDigest struct {
	calls []string
}

func (f *fakeDigest) AverageCompletionMinutes(_ context.Context, tenantID string, from, to time.Time) (int, bool, error) {
	f.calls = append(f.calls, tenantID+"@"+from.Format(time.RFC3339))
	return 42, true, nil
}

func TestRunDigestUsesTenantMidnight(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	digest := &fakeDigest{}
	s := NewScheduler(config.SchedulerConfig{}, SchedulerDependencies{
		Tenants: fakeTenants{list: func(context.Context) ([]domain.Tenant, error) {
			return []domain.Tenant{{ID: "t1"}}, nil
		}},
		Digest:   digest,
		Clock:    clock.Fake(now),
		Location: time.FixedZone("EST", -5*3600),
	})
	if err := s.RunDigest(context.Background()); err != nil {
		t.Fatalf("run digest: %v", err)
	}
	if len(digest.calls) != 1 || digest.calls[0] != "t1@2026-03-01T00:00:00-05:00" {
		t.Fatalf("unexpected digest calls %v", digest.calls)
	}
}

func TestMemoryDedupeExpires(t *testing.T) {
	clk := clock.Fake(time.Unix(0, 0))
	d := NewMemoryDedupe(clk)
	ctx := context.Background()
	if first, _ := d.FirstTime(ctx, "k", time.Minute); !first {
		t.Fatalf("expected first sighting")
	}
	if first, _ := d.FirstTime(ctx, "k", time.Minute); first {
		t.Fatalf("expected repeat to be suppressed")
	}
	clk.Advance(2 * time.Minute)
	if first, _ := d.FirstTime(ctx, "k", time.Minute); !first {
		t.Fatalf("expected mark to expire")
	}
}
