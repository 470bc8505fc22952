package service

import (
	"context"
	"testing"

	"github.com/shopdesk/jobtickets/internal/domain"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

func TestCustomerSearch(t *testing.T) {
	var gotName, gotDigits string
	repo := &fakeCustomerRepo{searchFn: func(_ context.Context, tenantID, name, digits string, limit int) ([]domain.CustomerSearchResult, error) {
		if tenantID != tenantA || limit != 25 {
			t.Fatalf("unexpected search scope %s %d", tenantID, limit)
		}
		gotName, gotDigits = name, digits
		return []domain.CustomerSearchResult{{Customer: domain.Customer{ID: "c1", Name: "Jane"}, TotalVisits: 3}}, nil
	}}
	svc := NewCustomerService(repo)

	results, err := svc.Search(context.Background(), writer(), " Ja ")
	if err != nil || len(results) != 1 {
		t.Fatalf("Search = %v, %v", results, err)
	}
	if gotName != "Ja" || gotDigits != "" {
		t.Fatalf("name=%q digits=%q", gotName, gotDigits)
	}

	if _, err := svc.Search(context.Background(), manager(), "(423) 555"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotDigits != "423555" {
		t.Fatalf("digits = %q", gotDigits)
	}
	if _, err := svc.Search(context.Background(), manager(), "J1"); err != nil || gotDigits != "" {
		t.Fatalf("short digit runs are not phone searches: %q %v", gotDigits, err)
	}
}

func TestCustomerSearchRules(t *testing.T) {
	svc := NewCustomerService(&fakeCustomerRepo{})
	if _, err := svc.Search(context.Background(), writer(), "J"); fieldErrors(t, err)["q"] == "" {
		t.Fatalf("expected q error")
	}
	if _, err := svc.Search(context.Background(), technician(), "Jane"); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
