package service

import (
	"strings"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/domain"
	"grocery-delivery/internal/metrics"
	"grocery-delivery/internal/microservices/tracker/registry"
)

type TrackerServiceInterface interface {
	Authenticate(token string) (auth.Identity, error)
	Attach(userID string, s registry.Socket)
	Detach(userID string, s registry.Socket)
	LiveCount() int
}

// TrackerService owns the admission of tracking sockets: nothing reaches the registry
// without a verified identity.
type TrackerService struct {
	registry *registry.Registry
	verifier auth.Verifier
	lg       *logger.Logger
}

func NewTrackerService(reg *registry.Registry, v auth.Verifier, lg *logger.Logger) *TrackerService {
	if lg == nil {
		lg = logger.Nop()
	}
	return &TrackerService{registry: reg, verifier: v, lg: lg}
}

func (s *TrackerService) Authenticate(token string) (auth.Identity, error) {
	if strings.TrimSpace(token) == "" {
		metrics.ConnectionsRejected.WithLabelValues("missing_token").Inc()
		return auth.Identity{}, domain.AuthenticationError("missing token")
	}
	id, err := s.verifier.Verify(token)
	if err != nil {
		metrics.ConnectionsRejected.WithLabelValues("invalid_token").Inc()
		return auth.Identity{}, err
	}
	return id, nil
}

func (s *TrackerService) Attach(userID string, sock registry.Socket) {
	s.registry.Register(userID, sock)
	s.lg.Debug("socket_registered", map[string]any{"user_id": userID, "conn_id": sock.ID()})
}

func (s *TrackerService) Detach(userID string, sock registry.Socket) {
	s.registry.Unregister(userID, sock)
	s.lg.Debug("socket_unregistered", map[string]any{"user_id": userID, "conn_id": sock.ID()})
}

func (s *TrackerService) LiveCount() int { return s.registry.Count() }
