package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/shopdesk/jobtickets/internal/clock"
	"github.com/shopdesk/jobtickets/internal/config"
	"github.com/shopdesk/jobtickets/internal/domain"
)

const (
	jobTimeout  = 2 * time.Minute
	reminderTTL = 48 * time.Hour
)

// TenantLister lists businesses the jobs run for.
type TenantLister interface {
	ListActive(ctx context.Context) ([]domain.Tenant, error)
}

// AppointmentLister finds pending appointments in a range.
type AppointmentLister interface {
	ListScheduledBetween(ctx context.Context, tenantID string, from, to time.Time) ([]domain.Ticket, error)
}

// Reminder sends one appointment reminder.
type Reminder interface {
	SendAppointmentReminder(ctx context.Context, tenant *domain.Tenant, ticket domain.Ticket, when string) error
}

// DigestSource supplies the daily completion average.
type DigestSource interface {
	AverageCompletionMinutes(ctx context.Context, tenantID string, from, to time.Time) (int, bool, error)
}

// Scheduler runs periodic jobs: appointment reminders and a daily digest.
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.SchedulerConfig
	tenants  TenantLister
	tickets  AppointmentLister
	reminder Reminder
	digest   DigestSource
	dedupe   Dedupe
	clock    clock.Clock
	location *time.Location
	logger   *zap.Logger
}

// SchedulerDependencies bundles what the jobs need.
type SchedulerDependencies struct {
	Tenants  TenantLister
	Tickets  AppointmentLister
	Reminder Reminder
	Digest   DigestSource
	Dedupe   Dedupe
	Clock    clock.Clock
	Location *time.Location
	Logger   *zap.Logger
}

// NewScheduler builds a scheduler; call Start to run it.
func NewScheduler(cfg config.SchedulerConfig, deps SchedulerDependencies) *Scheduler {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dedupe := deps.Dedupe
	if dedupe == nil {
		dedupe = NewMemoryDedupe(clk)
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		cfg:      cfg,
		tenants:  deps.Tenants,
		tickets:  deps.Tickets,
		reminder: deps.Reminder,
		digest:   deps.Digest,
		dedupe:   dedupe,
		clock:    clk,
		location: loc,
		logger:   logger,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.ReminderSpec, s.job("appointment_reminders", s.RunReminders)); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.DigestSpec, s.job("daily_digest", s.RunDigest)); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("reminders", s.cfg.ReminderSpec),
		zap.String("digest", s.cfg.DigestSpec),
	)
	return nil
}

// Stop halts the cron loop and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) job(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		started := s.clock.Now()
		if err := run(ctx); err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Debug("scheduled job finished", zap.String("job", name), zap.Duration("took", s.clock.Now().Sub(started)))
	}
}

// RunReminders texts customers whose appointment starts within the lead
// time. Each ticket is reminded at most once.
func (s *Scheduler) RunReminders(ctx context.Context) error {
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		return err
	}
	lead := time.Duration(s.cfg.ReminderLeadMins) * time.Minute
	if lead <= 0 {
		lead = time.Hour
	}
	now := s.clock.Now()
	for i := range tenants {
		tenant := &tenants[i]
		due, err := s.tickets.ListScheduledBetween(ctx, tenant.ID, now, now.Add(lead))
		if err != nil {
			s.logger.Warn("load appointments failed", zap.String("tenant_id", tenant.ID), zap.Error(err))
			continue
		}
		loc := tenant.Location(s.location)
		for _, ticket := range due {
			first, err := s.dedupe.FirstTime(ctx, "reminder:"+ticket.ID, reminderTTL)
			if err != nil {
				s.logger.Warn("reminder dedupe failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
				continue
			}
			if !first {
				continue
			}
			when := ticket.ScheduledTime.In(loc).Format("3:04 PM")
			if err := s.reminder.SendAppointmentReminder(ctx, tenant, ticket, when); err != nil {
				s.logger.Warn("appointment reminder failed",
					zap.String("tenant_id", tenant.ID),
					zap.String("ticket_id", ticket.ID),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// RunDigest logs each business's average completion time for the current
// local day.
func (s *Scheduler) RunDigest(ctx context.Context) error {
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	for _, tenant := range tenants {
		local := now.In(tenant.Location(s.location))
		from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
		avg, ok, err := s.digest.AverageCompletionMinutes(ctx, tenant.ID, from, now)
		if err != nil {
			s.logger.Warn("daily digest failed", zap.String("tenant_id", tenant.ID), zap.Error(err))
			continue
		}
		fields := []zap.Field{
			zap.String("tenant_id", tenant.ID),
			zap.String("tenant", tenant.Slug),
			zap.Time("from", from),
		}
		if ok {
			fields = append(fields, zap.Int("avg_completion_minutes", avg))
		}
		s.logger.Info("daily digest", fields...)
	}
	return nil
}
