package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/shopdesk/jobtickets/internal/api/dto"
	"github.com/shopdesk/jobtickets/internal/auth"
	"github.com/shopdesk/jobtickets/internal/domain"
	"github.com/shopdesk/jobtickets/internal/ratelimit"
	"github.com/shopdesk/jobtickets/internal/service"
	apperrors "github.com/shopdesk/jobtickets/pkg/util/errorutil"
)

// Close codes sent to clients.
const (
	closeBadRequest   = 4000
	closeUnauthorized = 4001
	closeUnavailable  = 4003
)

const (
	authTimeout = 5 * time.Second
	sendBuffer  = 4
)

// TenantLookup finds a business by routing slug.
type TenantLookup interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
}

// Watcher streams queue snapshots.
type Watcher interface {
	Watch(ctx context.Context, identity domain.Identity, fn func(*service.QueueSnapshot)) (func(), error)
}

// Authenticator turns a subscribe message into a caller identity.
type Authenticator struct {
	Tenants  TenantLookup
	Resolver auth.Resolver
}

// Authenticate resolves the tenant and validates the presented token.
func (a Authenticator) Authenticate(ctx context.Context, msg SubscribeMessage) (domain.Identity, error) {
	tenant, err := a.Tenants.GetBySlug(ctx, strings.TrimSpace(msg.Tenant))
	if err != nil {
		return domain.Identity{}, err
	}
	if strings.TrimSpace(msg.Token) == "" {
		return domain.Identity{}, apperrors.NewUnauthorized("authentication required")
	}
	var principal *auth.Principal
	if strings.EqualFold(msg.Scheme, "bearer") {
		principal, err = a.Resolver.ResolveCredential(ctx, msg.Token, tenant.ID)
	} else {
		principal, err = a.Resolver.ResolveSession(ctx, msg.Token, tenant.ID)
	}
	if err != nil {
		return domain.Identity{}, err
	}
	return principal.Identity, nil
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Server serves the SockJS endpoint.
type Server struct {
	hub     *Hub
	auth    Authenticator
	watcher Watcher
	logger  *zap.Logger
}

// NewServer wires the realtime endpoint.
func NewServer(hub *Hub, authenticator Authenticator, watcher Watcher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{hub: hub, auth: authenticator, watcher: watcher, logger: logger}
}

// Handler returns the HTTP handler for the realtime listener, rate limited
// per client address and traced.
func (s *Server) Handler(limiter *ratelimit.TokenLimiter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/realtime/", sockjs.NewHandler("/realtime", sockjs.DefaultOptions, s.serveSession))

	var handler http.Handler = mux
	if limiter != nil {
		handler = limiter.Middleware(handler)
	}
	return otelhttp.NewHandler(handler, "realtime")
}

func (s *Server) serveSession(session sockjs.Session) {
	client := &Client{ID: uuid.NewString(), Send: make(chan []byte, sendBuffer)}
	s.hub.Register(client)

	var (
		mu   sync.Mutex
		stop func()
	)
	unwatch := func() {
		mu.Lock()
		defer mu.Unlock()
		if stop != nil {
			stop()
			stop = nil
		}
	}
	defer func() {
		unwatch()
		s.hub.Unregister(client)
	}()

	go func() {
		for msg := range client.Send {
			if err := session.Send(string(msg)); err != nil {
				return
			}
		}
	}()

	for {
		raw, err := session.Recv()
		if err != nil {
			return
		}
		msg, ok := ParseSubscribe([]byte(raw))
		if !ok {
			_ = session.Close(closeBadRequest, "unknown message")
			return
		}
		unwatch()
		if msg.Action == "unsubscribe" {
			s.hub.SetTenant(client, "")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		identity, err := s.auth.Authenticate(ctx, msg)
		cancel()
		if err != nil {
			de := apperrors.ToDomainError(err)
			s.logger.Info("realtime subscribe refused", zap.String("client_id", client.ID), zap.String("code", de.Code))
			_ = session.Close(closeUnauthorized, de.Message)
			return
		}

		send := client.Send
		cancelWatch, err := s.watcher.Watch(context.Background(), identity, func(snap *service.QueueSnapshot) {
			payload, err := json.Marshal(envelope{Type: "queue", Payload: dto.Queue(snap)})
			if err != nil {
				s.logger.Error("encode queue snapshot failed", zap.Error(err))
				return
			}
			Offer(send, payload)
		})
		if err != nil {
			s.logger.Warn("realtime watch failed", zap.String("tenant_id", identity.TenantID), zap.Error(err))
			_ = session.Close(closeUnavailable, "queue unavailable, try again")
			return
		}
		mu.Lock()
		stop = cancelWatch
		mu.Unlock()
		s.hub.SetTenant(client, identity.TenantID)
	}
}
