package app

import (
	"context"

	"github.com/dokzlo13/ceilingd/internal/api"
	"github.com/dokzlo13/ceilingd/internal/config"
)

// APIService runs the HTTP control API.
type APIService struct {
	cfg    *config.Config
	server *api.Server
}

// NewAPIService creates the service. history may be nil.
func NewAPIService(cfg *config.Config, ctrl api.Controller, history api.History) *APIService {
	return &APIService{
		cfg:    cfg,
		server: api.NewServer(cfg.API.Host, cfg.API.Port, ctrl, history),
	}
}

// Start serves the API in the background if enabled. A listen failure is
// fatal since the daemon has no other control surface.
func (s *APIService) Start(ctx context.Context, onFatalError func(error)) {
	if !s.cfg.API.Enabled {
		return
	}
	go func() {
		if err := s.server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil && onFatalError != nil {
			onFatalError(err)
		}
	}()
}
