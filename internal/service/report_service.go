package service

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shopdesk/jobtickets/internal/clock"
	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/repository"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

// Report windows.
const (
	WindowToday  = "today"
	WindowWeek   = "week"
	WindowCustom = "custom"
)

const completedListLimit = 50

// WindowInput selects a reporting range. From and To are tenant-local dates
// (YYYY-MM-DD) used by the custom window; To is inclusive.
type WindowInput struct {
	Mode string
	From string
	To   string
}

// Window is a resolved half-open time range.
type Window struct {
	Mode string    `json:"mode"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ServiceStat aggregates tickets of one service type.
type ServiceStat struct {
	ServiceType string  `json:"service_type"`
	Label       string  `json:"label"`
	Count       int     `json:"count"`
	Hours       float64 `json:"hours"`
}

// TechnicianStat aggregates completions by one technician.
type TechnicianStat struct {
	TechnicianID string  `json:"technician_id"`
	Name         string  `json:"name"`
	Count        int     `json:"count"`
	Hours        float64 `json:"hours"`
}

// KPIReport is the manager dashboard for a window. Tickets excluded from
// metrics do not contribute to any figure.
type KPIReport struct {
	Window               Window           `json:"window"`
	Total                int              `json:"total"`
	Completed            int              `json:"completed"`
	Pending              int              `json:"pending"`
	AvgCompletionMinutes int              `json:"avg_completion_minutes"`
	AvgCompletion        string           `json:"avg_completion"`
	TotalHours           float64          `json:"total_hours"`
	ByService            []ServiceStat    `json:"by_service"`
	ByTechnician         []TechnicianStat `json:"by_technician"`
}

// ReportService projects tickets into read-only reports.
type ReportService struct {
	tickets  repository.TicketRepository
	tenants  repository.TenantRepository
	catalogs *CatalogService
	clock    clock.Clock
	location *time.Location
	logger   *zap.Logger
}

// ReportDependencies bundles requirements for reports.
type ReportDependencies struct {
	TicketRepo repository.TicketRepository
	TenantRepo repository.TenantRepository
	Catalogs   *CatalogService
	Clock      clock.Clock
	Location   *time.Location
	Logger     *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(deps ReportDependencies) *ReportService {
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
	return &ReportService{
		tickets:  deps.TicketRepo,
		tenants:  deps.TenantRepo,
		catalogs: deps.Catalogs,
		clock:    clk,
		location: loc,
		logger:   logger,
	}
}

// ResolveWindow turns a window selection into instants in loc. Today starts
// at local midnight, week starts Sunday at local midnight, and both end now.
func ResolveWindow(input WindowInput, now time.Time, loc *time.Location) (Window, error) {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	mode := strings.ToLower(strings.TrimSpace(input.Mode))
	switch mode {
	case "", WindowToday:
		return Window{Mode: WindowToday, From: midnight, To: now}, nil
	case WindowWeek:
		return Window{Mode: WindowWeek, From: midnight.AddDate(0, 0, -int(local.Weekday())), To: now}, nil
	case WindowCustom:
		errs := map[string]string{}
		from, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(input.From), loc)
		if err != nil {
			errs["from"] = "use YYYY-MM-DD"
		}
		to, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(input.To), loc)
		if err != nil {
			errs["to"] = "use YYYY-MM-DD"
		}
		if len(errs) == 0 && to.Before(from) {
			errs["to"] = "end date must not be before start date"
		}
		if len(errs) > 0 {
			return Window{}, apperrors.NewFieldErrors(errs)
		}
		return Window{Mode: WindowCustom, From: from, To: to.AddDate(0, 0, 1)}, nil
	}
	return Window{}, apperrors.NewFieldErrors(map[string]string{"window": "use today, week, or custom"})
}

// KPIs computes the dashboard figures for tickets created in the window.
func (s *ReportService) KPIs(ctx context.Context, identity domain.Identity, input WindowInput) (*KPIReport, error) {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return nil, err
	}
	window, err := s.window(ctx, identity.TenantID, input)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListCreatedBetween(ctx, identity.TenantID, window.From, window.To)
	if err != nil {
		return nil, storeErr(err, "could not load reports, try again")
	}
	cat, err := s.catalogs.For(ctx, identity.TenantID)
	if err != nil {
		return nil, storeErr(err, "could not load reports, try again")
	}
	report := BuildKPIs(window, tickets, cat)
	return &report, nil
}

// BuildKPIs aggregates tickets into a report.
func BuildKPIs(window Window, tickets []domain.Ticket, labels Labeler) KPIReport {
	report := KPIReport{
		Window:       window,
		ByService:    []ServiceStat{},
		ByTechnician: []TechnicianStat{},
	}
	type acc struct {
		name    string
		count   int
		minutes float64
	}
	services := map[string]*acc{}
	techs := map[string]*acc{}
	var totalMinutes float64
	var timed int

	for i := range tickets {
		t := &tickets[i]
		if !t.CountsTowardMetrics() {
			continue
		}
		report.Total++
		svc := services[t.ServiceType]
		if svc == nil {
			svc = &acc{name: labels.Label(t.ServiceType)}
			services[t.ServiceType] = svc
		}
		svc.count++
		if t.Status != domain.TicketStatusCompleted {
			report.Pending++
			continue
		}
		report.Completed++
		minutes, ok := t.CompletionMinutes()
		if !ok {
			continue
		}
		totalMinutes += minutes
		timed++
		svc.minutes += minutes
		if t.CompletedBy != nil {
			tech := techs[*t.CompletedBy]
			if tech == nil {
				name := t.CompletedByName
				if name == "" {
					name = "Unknown"
				}
				tech = &acc{name: name}
				techs[*t.CompletedBy] = tech
			}
			tech.count++
			tech.minutes += minutes
		}
	}

	if timed > 0 {
		report.AvgCompletionMinutes = int(math.Round(totalMinutes / float64(timed)))
	}
	report.AvgCompletion = FormatMinutes(float64(report.AvgCompletionMinutes))
	report.TotalHours = hours(totalMinutes)

	for slug, a := range services {
		report.ByService = append(report.ByService, ServiceStat{ServiceType: slug, Label: a.name, Count: a.count, Hours: hours(a.minutes)})
	}
	sort.Slice(report.ByService, func(i, j int) bool {
		if report.ByService[i].Count != report.ByService[j].Count {
			return report.ByService[i].Count > report.ByService[j].Count
		}
		return report.ByService[i].ServiceType < report.ByService[j].ServiceType
	})
	for id, a := range techs {
		report.ByTechnician = append(report.ByTechnician, TechnicianStat{TechnicianID: id, Name: a.name, Count: a.count, Hours: hours(a.minutes)})
	}
	sort.Slice(report.ByTechnician, func(i, j int) bool {
		if report.ByTechnician[i].Count != report.ByTechnician[j].Count {
			return report.ByTechnician[i].Count > report.ByTechnician[j].Count
		}
		return report.ByTechnician[i].Name < report.ByTechnician[j].Name
	})
	return report
}

// AverageCompletionMinutes asks the datastore for the rounded mean
// completion time of counted tickets created in [from, to). ok is false
// when nothing qualifies.
func (s *ReportService) AverageCompletionMinutes(ctx context.Context, tenantID string, from, to time.Time) (minutes int, ok bool, err error) {
	avg, err := s.tickets.AverageCompletionMinutes(ctx, tenantID, from, to)
	if err != nil {
		return 0, false, storeErr(err, "could not load reports, try again")
	}
	if avg == nil {
		return 0, false, nil
	}
	return int(math.Round(*avg)), true, nil
}

var csvHeader = []string{
	"ticket_number", "service_type", "vehicle", "customer_name", "customer_phone",
	"technician", "created_at", "completed_at", "minutes", "excluded_from_metrics",
}

// ExportCSV writes completed tickets created in the window, excluded ones
// included and flagged.
func (s *ReportService) ExportCSV(ctx context.Context, identity domain.Identity, input WindowInput, w io.Writer) error {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return err
	}
	window, err := s.window(ctx, identity.TenantID, input)
	if err != nil {
		return err
	}
	tickets, err := s.tickets.ListCreatedBetween(ctx, identity.TenantID, window.From, window.To)
	if err != nil {
		return storeErr(err, "could not export tickets, try again")
	}
	loc := s.tenantLocation(ctx, identity.TenantID)

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range tickets {
		if t.Status != domain.TicketStatusCompleted || t.CompletedAt == nil {
			continue
		}
		minutes, _ := t.CompletionMinutes()
		record := []string{
			strconv.FormatInt(t.TicketNumber, 10),
			t.ServiceType,
			t.Vehicle,
			t.CustomerName,
			t.CustomerPhone,
			t.CompletedByName,
			t.CreatedAt.In(loc).Format(time.RFC3339),
			t.CompletedAt.In(loc).Format(time.RFC3339),
			strconv.Itoa(int(math.Round(minutes))),
			strconv.FormatBool(t.ExcludedFromMetrics),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ListCompleted returns the most recently completed tickets for the
// completed-jobs view.
func (s *ReportService) ListCompleted(ctx context.Context, identity domain.Identity) ([]domain.Ticket, error) {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListCompleted(ctx, identity.TenantID, completedListLimit)
	if err != nil {
		return nil, storeErr(err, "could not load completed jobs, try again")
	}
	return tickets, nil
}

func (s *ReportService) window(ctx context.Context, tenantID string, input WindowInput) (Window, error) {
	return ResolveWindow(input, s.clock.Now(), s.tenantLocation(ctx, tenantID))
}

func (s *ReportService) tenantLocation(ctx context.Context, tenantID string) *time.Location {
	if s.tenants == nil {
		return s.location
	}
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		s.logger.Debug("tenant time zone unavailable", zap.String("tenant_id", tenantID), zap.Error(err))
		return s.location
	}
	return tenant.Location(s.location)
}

func hours(minutes float64) float64 {
	return math.Round(minutes/60*10) / 10
}
