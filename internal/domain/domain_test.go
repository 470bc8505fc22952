package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TicketStatus
		valid    bool
	}{
		{TicketStatusPending, TicketStatusCompleted, true},
		{TicketStatusCompleted, TicketStatusPending, false},
		{TicketStatusCompleted, TicketStatusCompleted, false},
		{TicketStatusPending, TicketStatusPending, false},
		{TicketStatus("CANCELLED"), TicketStatusCompleted, false},
	}
	for _, tt := range cases {
		if got := CanTransition(tt.from, tt.to); got != tt.valid {
			t.Fatalf("CanTransition(%s, %s)=%v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestCompleteStampsTogether(t *testing.T) {
	ticket := &Ticket{Status: TicketStatusPending, CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	if !ticket.Consistent() {
		t.Fatalf("pending ticket should be consistent")
	}
	at := ticket.CreatedAt.Add(45 * time.Minute)
	if err := ticket.Complete("tech-1", at); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !ticket.Consistent() || *ticket.CompletedBy != "tech-1" || !ticket.CompletedAt.Equal(at) {
		t.Fatalf("unexpected stamp %+v", ticket)
	}
	if mins, ok := ticket.CompletionMinutes(); !ok || mins != 45 {
		t.Fatalf("completion minutes = %v", mins)
	}
	if err := ticket.Complete("tech-2", at.Add(time.Hour)); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	if *ticket.CompletedBy != "tech-1" {
		t.Fatalf("second completion must not restamp")
	}
}

func TestConsistentRejectsPartialStamp(t *testing.T) {
	now := time.Now()
	ticket := &Ticket{Status: TicketStatusCompleted, CompletedAt: &now}
	if ticket.Consistent() {
		t.Fatalf("completed ticket without completer should be inconsistent")
	}
	tech := "tech-1"
	ticket = &Ticket{Status: TicketStatusPending, CompletedBy: &tech}
	if ticket.Consistent() {
		t.Fatalf("pending ticket with completer should be inconsistent")
	}
}

func TestPhoneNormalization(t *testing.T) {
	a, err := PhoneKey("423-555-1234")
	if err != nil {
		t.Fatalf("PhoneKey: %v", err)
	}
	b, err := PhoneKey("4235551234")
	if err != nil {
		t.Fatalf("PhoneKey: %v", err)
	}
	c, _ := PhoneKey("(423) 555 1234")
	if a != b || a != c || a != "4235551234" {
		t.Fatalf("keys differ: %q %q %q", a, b, c)
	}
	if _, err := PhoneKey("+1 423 555 1234"); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("11 digits should be rejected, got %v", err)
	}
	if _, err := FormatPhone("555-1234"); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if got, _ := FormatPhone("(423) 555 0001"); got != "423-555-0001" {
		t.Fatalf("FormatPhone = %q", got)
	}
}

func TestNormalizeCode(t *testing.T) {
	if NormalizeCode(" t01 ") != "T01" {
		t.Fatalf("unexpected normalization")
	}
}

func TestValidTenantSlug(t *testing.T) {
	for slug, want := range map[string]bool{
		"interstate-tire": true,
		"shop1":           true,
		"Shop":            false,
		"":                false,
		"a_b":             false,
		"x.y":             false,
	} {
		if got := ValidTenantSlug(slug); got != want {
			t.Fatalf("ValidTenantSlug(%q)=%v", slug, got)
		}
	}
}

func TestIsUpcoming(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Minute)
	if !(&Ticket{ScheduledTime: &later}).IsUpcoming(now) {
		t.Fatalf("future appointment should be upcoming")
	}
	if (&Ticket{ScheduledTime: &earlier}).IsUpcoming(now) {
		t.Fatalf("past appointment should not be upcoming")
	}
	if (&Ticket{}).IsUpcoming(now) {
		t.Fatalf("unscheduled ticket should not be upcoming")
	}
}
