package realtime

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/shopdesk/jobtickets/internal/auth"
	"github.com/shopdesk/jobtickets/internal/domain"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

func TestOfferKeepsNewestPayload(t *testing.T) {
	ch := make(chan []byte, 1)
	Offer(ch, []byte("first"))
	Offer(ch, []byte("second"))
	if got := string(<-ch); got != "second" {
		t.Fatalf("expected newest payload, got %q", got)
	}
}

func TestHubCountsPerTenant(t *testing.T) {
	h := NewHub()
	a := &Client{ID: "a", Send: make(chan []byte, 1)}
	b := &Client{ID: "b", Send: make(chan []byte, 1)}
	h.Register(a)
	h.Register(b)
	h.SetTenant(a, "t1")
	h.SetTenant(b, "t2")
	if h.Count("t1") != 1 || h.Count("") != 2 {
		t.Fatalf("unexpected counts t1=%d all=%d", h.Count("t1"), h.Count(""))
	}
	h.Unregister(a)
	h.Unregister(a)
	if h.Count("") != 1 {
		t.Fatalf("expected one client after unregister")
	}
	if _, open := <-a.Send; open {
		t.Fatalf("expected send channel closed")
	}
}

func TestParseSubscribe(t *testing.T) {
	msg, ok := ParseSubscribe([]byte(`{"action":"subscribe","tenant":"shop","token":"abc"}`))
	if !ok || msg.Tenant != "shop" || msg.Token != "abc" {
		t.Fatalf("unexpected parse %+v ok=%v", msg, ok)
	}
	if _, ok := ParseSubscribe([]byte(`{"action":"publish"}`)); ok {
		t.Fatalf("expected unknown action to be rejected")
	}
	if _, ok := ParseSubscribe([]byte(`not json`)); ok {
		t.Fatalf("expected invalid json to be rejected")
	}
}

type fakeTenants struct {
	tenants map[string]*domain.Tenant
}

func (f fakeTenants) GetBySlug(_ context.Context, slug string) (*domain.Tenant, error) {
	if t, ok := f.tenants[slug]; ok {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}

type fakeResolver struct {
	session    func(ctx context.Context, token, tenantID string) (*auth.Principal, error)
	credential func(ctx context.Context, token, tenantID string) (*auth.Principal, error)
}

func (f fakeResolver) ResolveSession(ctx context.Context, token, tenantID string) (*auth.Principal, error) {
	return f.session(ctx, token, tenantID)
}

func (f fakeResolver) ResolveCredential(ctx context.Context, token, tenantID string) (*auth.Principal, error) {
	return f.credential(ctx, token, tenantID)
}

func TestAuthenticatorPicksScheme(t *testing.T) {
	tenants := fakeTenants{tenants: map[string]*domain.Tenant{"shop": {ID: "t1", Slug: "shop"}}}
	var used string
	resolver := fakeResolver{
		session: func(_ context.Context, token, tenantID string) (*auth.Principal, error) {
			used = "session:" + tenantID
			return &auth.Principal{Identity: domain.Identity{StaffID: "s1", TenantID: tenantID}}, nil
		},
		credential: func(_ context.Context, token, tenantID string) (*auth.Principal, error) {
			used = "bearer:" + tenantID
			return &auth.Principal{Identity: domain.Identity{StaffID: "s1", TenantID: tenantID}}, nil
		},
	}
	a := Authenticator{Tenants: tenants, Resolver: resolver}

	if _, err := a.Authenticate(context.Background(), SubscribeMessage{Tenant: "shop", Token: "x"}); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if used != "session:t1" {
		t.Fatalf("expected session resolution, got %q", used)
	}
	if _, err := a.Authenticate(context.Background(), SubscribeMessage{Tenant: "shop", Token: "x", Scheme: "Bearer"}); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if used != "bearer:t1" {
		t.Fatalf("expected bearer resolution, got %q", used)
	}

	_, err := a.Authenticate(context.Background(), SubscribeMessage{Tenant: "shop"})
	if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized without token, got %v", err)
	}
}
