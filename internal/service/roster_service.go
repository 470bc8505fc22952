package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/mail"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/repository"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{1,12}$`)

// RosterService manages the shop's staff list. Every operation is
// manager-only and scoped to the manager's business.
type RosterService struct {
	staff  repository.StaffRepository
	logger *zap.Logger
	intn   func(n int) int
}

// RosterDependencies bundles requirements for the roster.
type RosterDependencies struct {
	StaffRepo repository.StaffRepository
	Logger    *zap.Logger
	// Intn picks code suggestions; math/rand when nil.
	Intn func(n int) int
}

// CreateMemberInput describes a new staff member.
type CreateMemberInput struct {
	Name  string
	Code  string
	Role  domain.StaffRole
	Email string
}

// NewRosterService constructs the service.
func NewRosterService(deps RosterDependencies) *RosterService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	intn := deps.Intn
	if intn == nil {
		intn = rand.IntN
	}
	return &RosterService{staff: deps.StaffRepo, logger: logger, intn: intn}
}

// ListMembers returns every staff member with their technician profile.
func (s *RosterService) ListMembers(ctx context.Context, identity domain.Identity) ([]domain.RosterMember, error) {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return nil, err
	}
	members, err := s.staff.ListMembers(ctx, identity.TenantID)
	if err != nil {
		return nil, storeErr(err, "could not load the team, try again")
	}
	return members, nil
}

// CreateMember adds a staff member. Technicians get their paired technician
// profile in the same write.
func (s *RosterService) CreateMember(ctx context.Context, identity domain.Identity, input CreateMemberInput) (*domain.Staff, error) {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return nil, err
	}

	errs := map[string]string{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		errs["name"] = "name is required"
	}
	code := domain.NormalizeCode(input.Code)
	if msg := checkCode(code); msg != "" {
		errs["code"] = msg
	}
	if !input.Role.Valid() {
		errs["role"] = "role must be SERVICE_WRITER, TECHNICIAN, or MANAGER"
	}
	var email *string
	if trimmed := strings.TrimSpace(input.Email); trimmed != "" {
		addr, err := mail.ParseAddress(trimmed)
		if err != nil {
			errs["email"] = "enter a valid email address"
		} else {
			lowered := strings.ToLower(addr.Address)
			email = &lowered
		}
	}
	if len(errs) > 0 {
		return nil, apperrors.NewFieldErrors(errs)
	}

	if err := s.ensureCodeFree(ctx, code, ""); err != nil {
		return nil, err
	}

	staff := &domain.Staff{
		TenantID: identity.TenantID,
		Code:     code,
		Name:     name,
		Email:    email,
		Role:     input.Role,
	}
	err := s.staff.Create(ctx, staff, input.Role == domain.StaffRoleTechnician)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, codeInUse(code)
	}
	if err != nil {
		return nil, storeErr(err, "could not add team member, try again")
	}
	s.logger.Info("staff member created",
		zap.String("tenant_id", identity.TenantID),
		zap.String("staff_id", staff.ID),
		zap.String("role", string(staff.Role)),
	)
	return staff, nil
}

// UpdateCode changes a member's login code.
func (s *RosterService) UpdateCode(ctx context.Context, identity domain.Identity, staffID, code string) error {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return err
	}
	if err := validID(staffID, "staff_id"); err != nil {
		return err
	}
	code = domain.NormalizeCode(code)
	if msg := checkCode(code); msg != "" {
		return apperrors.NewFieldErrors(map[string]string{"code": msg})
	}
	if _, err := s.member(ctx, identity.TenantID, staffID); err != nil {
		return err
	}
	if err := s.ensureCodeFree(ctx, code, staffID); err != nil {
		return err
	}
	err := s.staff.UpdateCode(ctx, identity.TenantID, staffID, code)
	if errors.Is(err, repository.ErrDuplicate) {
		return codeInUse(code)
	}
	if err != nil {
		return lookupErr(err, "staff member")
	}
	return nil
}

// Rename changes a member's display name, including on their technician
// profile.
func (s *RosterService) Rename(ctx context.Context, identity domain.Identity, staffID, name string) error {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return err
	}
	if err := validID(staffID, "staff_id"); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.NewFieldErrors(map[string]string{"name": "name is required"})
	}
	if err := s.staff.Rename(ctx, identity.TenantID, staffID, name); err != nil {
		return lookupErr(err, "staff member")
	}
	return nil
}

// Deactivate blocks a member from signing in. Their tickets and history are
// kept.
func (s *RosterService) Deactivate(ctx context.Context, identity domain.Identity, staffID string) error {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return err
	}
	if staffID == identity.StaffID {
		return apperrors.NewConflict("you cannot deactivate yourself", nil)
	}
	return s.setActive(ctx, identity, staffID, false)
}

// Activate restores a deactivated member.
func (s *RosterService) Activate(ctx context.Context, identity domain.Identity, staffID string) error {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return err
	}
	return s.setActive(ctx, identity, staffID, true)
}

func (s *RosterService) setActive(ctx context.Context, identity domain.Identity, staffID string, active bool) error {
	if err := validID(staffID, "staff_id"); err != nil {
		return err
	}
	if err := s.staff.SetActive(ctx, identity.TenantID, staffID, active); err != nil {
		return lookupErr(err, "staff member")
	}
	s.logger.Info("staff member status changed",
		zap.String("tenant_id", identity.TenantID),
		zap.String("staff_id", staffID),
		zap.Bool("active", active),
	)
	return nil
}

// SuggestCode proposes an unused login code for role, such as "T42".
func (s *RosterService) SuggestCode(ctx context.Context, identity domain.Identity, role domain.StaffRole) (string, error) {
	if err := authorize(identity, domain.StaffRoleManager); err != nil {
		return "", err
	}
	if !role.Valid() {
		return "", apperrors.NewFieldErrors(map[string]string{"role": "unknown role"})
	}
	var code string
	for range 5 {
		code = fmt.Sprintf("%s%d", role.CodePrefix(), s.intn(90)+10)
		inUse, err := s.staff.CodeInUse(ctx, code, "")
		if err != nil {
			return "", storeErr(err, "could not suggest a code, try again")
		}
		if !inUse {
			return code, nil
		}
	}
	return code, nil
}

func (s *RosterService) member(ctx context.Context, tenantID, staffID string) (*domain.Staff, error) {
	staff, err := s.staff.GetByID(ctx, tenantID, staffID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("staff member", nil)
	}
	if err != nil {
		return nil, storeErr(err, "could not load staff member, try again")
	}
	return staff, nil
}

// ensureCodeFree checks codes across every business and every status; a
// login code identifies one person globally.
func (s *RosterService) ensureCodeFree(ctx context.Context, code, excludeID string) error {
	inUse, err := s.staff.CodeInUse(ctx, code, excludeID)
	if err != nil {
		return storeErr(err, "could not check the ID code, try again")
	}
	if inUse {
		return codeInUse(code)
	}
	return nil
}

func checkCode(code string) string {
	switch {
	case code == "":
		return "ID code is required"
	case !codePattern.MatchString(code):
		return "use up to 12 letters and digits"
	}
	return ""
}

func codeInUse(code string) error {
	return apperrors.NewConflict(fmt.Sprintf("ID Code %q is already in use.", code), map[string]any{"code": code})
}
