package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/repository"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

func TestCreateMemberPairsTechnician(t *testing.T) {
	var gotTech bool
	var saved domain.Staff
	repo := &fakeStaffRepo{createFn: func(_ context.Context, s *domain.Staff, withTech bool) error {
		gotTech = withTech
		s.ID = staffID
		saved = *s
		return nil
	}}
	svc := NewRosterService(RosterDependencies{StaffRepo: repo})
	staff, err := svc.CreateMember(context.Background(), manager(), CreateMemberInput{
		Name: " Tom ", Code: "t07", Role: domain.StaffRoleTechnician, Email: "Tom@Shop.Example",
	})
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	if !gotTech || staff.ID != staffID {
		t.Fatalf("technician row not requested")
	}
	if saved.Code != "T07" || saved.Name != "Tom" || *saved.Email != "tom@shop.example" || saved.TenantID != tenantA {
		t.Fatalf("unexpected staff %+v", saved)
	}
}

func TestCreateMemberValidation(t *testing.T) {
	svc := NewRosterService(RosterDependencies{StaffRepo: &fakeStaffRepo{}})
	_, err := svc.CreateMember(context.Background(), manager(), CreateMemberInput{Code: "T-1", Role: "OWNER", Email: "nope"})
	fields := fieldErrors(t, err)
	for _, key := range []string{"name", "code", "role", "email"} {
		if fields[key] == "" {
			t.Fatalf("missing %s error in %v", key, fields)
		}
	}
}

func TestCreateMemberCodeTakenGlobally(t *testing.T) {
	repo := &fakeStaffRepo{codeInUseFn: func(_ context.Context, code, exclude string) (bool, error) {
		return code == "T01" && exclude == "", nil
	}}
	svc := NewRosterService(RosterDependencies{StaffRepo: repo})
	_, err := svc.CreateMember(context.Background(), manager(), CreateMemberInput{Name: "Tom", Code: "T01", Role: domain.StaffRoleTechnician})
	de := apperrors.ToDomainError(err)
	if de.Code != apperrors.CodeConflict || de.Message != `ID Code "T01" is already in use.` {
		t.Fatalf("expected code conflict, got %+v", de)
	}

	repo.codeInUseFn = nil
	repo.createFn = func(context.Context, *domain.Staff, bool) error { return repository.ErrDuplicate }
	if _, err := svc.CreateMember(context.Background(), manager(), CreateMemberInput{Name: "Tom", Code: "T01", Role: domain.StaffRoleTechnician}); !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("racing insert should conflict, got %v", err)
	}
}

func TestUpdateCodeChecksMember(t *testing.T) {
	repo := &fakeStaffRepo{}
	svc := NewRosterService(RosterDependencies{StaffRepo: repo})
	if err := svc.UpdateCode(context.Background(), manager(), staffID, "T02"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	var excluded string
	repo.getFn = func(context.Context, string, string) (*domain.Staff, error) { return &domain.Staff{ID: staffID}, nil }
	repo.codeInUseFn = func(_ context.Context, _ string, exclude string) (bool, error) {
		excluded = exclude
		return false, nil
	}
	var updated string
	repo.updateCodeFn = func(_ context.Context, _, _, code string) error {
		updated = code
		return nil
	}
	if err := svc.UpdateCode(context.Background(), manager(), staffID, " t02 "); err != nil {
		t.Fatalf("UpdateCode: %v", err)
	}
	if excluded != staffID || updated != "T02" {
		t.Fatalf("excluded=%q updated=%q", excluded, updated)
	}
}

func TestDeactivateSelfRefused(t *testing.T) {
	calls := 0
	repo := &fakeStaffRepo{setActiveFn: func(context.Context, string, string, bool) error {
		calls++
		return nil
	}}
	svc := NewRosterService(RosterDependencies{StaffRepo: repo})
	self := manager()
	self.StaffID = staffID
	if err := svc.Deactivate(context.Background(), self, staffID); !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := svc.Deactivate(context.Background(), manager(), staffID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	repo.setActiveFn = func(context.Context, string, string, bool) error { return pgx.ErrNoRows }
	if err := svc.Activate(context.Background(), manager(), staffID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRosterManagerOnly(t *testing.T) {
	svc := NewRosterService(RosterDependencies{StaffRepo: &fakeStaffRepo{}})
	if _, err := svc.ListMembers(context.Background(), technician()); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.Rename(context.Background(), writer(), staffID, "X"); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSuggestCodeSkipsTaken(t *testing.T) {
	draws := []int{1, 32}
	repo := &fakeStaffRepo{codeInUseFn: func(_ context.Context, code, _ string) (bool, error) {
		return code == "SW11", nil
	}}
	svc := NewRosterService(RosterDependencies{StaffRepo: repo, Intn: func(int) int {
		n := draws[0]
		draws = draws[1:]
		return n
	}})
	code, err := svc.SuggestCode(context.Background(), manager(), domain.StaffRoleServiceWriter)
	if err != nil || code != "SW42" {
		t.Fatalf("SuggestCode = %q, %v", code, err)
	}
	if _, err := svc.SuggestCode(context.Background(), manager(), "OWNER"); fieldErrors(t, err)["role"] == "" {
		t.Fatalf("expected role error")
	}
}
