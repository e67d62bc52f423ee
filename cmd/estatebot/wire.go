package main

import (
	"github.com/user/estatebot/internal/config"
	"github.com/user/estatebot/internal/delivery"
	"github.com/user/estatebot/internal/gateway"
	"github.com/user/estatebot/internal/session"
	"github.com/user/estatebot/internal/types"
	"github.com/user/estatebot/pkg/analytics"
	"github.com/user/estatebot/pkg/analytics/rest"
)

func newService(cfg *config.Config) analytics.Service {
	// The session bounds each call with its own timeout.
	return rest.New(&analytics.Config{BaseURL: cfg.Analytics.BaseURL})
}

// newGateway builds a gateway whose sessions push their output through
// deliveries, keyed by the session key's transport prefix. Sessions of a
// transport with no handler, such as the web pages, are polled instead.
func newGateway(cfg *config.Config, svc analytics.Service, deliveries *delivery.Registry) *gateway.Gateway {
	factory := func(key types.SessionKey, id types.SessionID) *session.Controller {
		opts := []session.Option{
			session.WithID(id),
			session.WithTimeout(cfg.Timeout()),
		}
		if deliveries.Handles(key) {
			opts = append(opts, session.WithObserver(deliveries.Observer(key)))
		}
		return session.New(svc, opts...)
	}
	return gateway.New(factory, gateway.Options{
		MaxSessions:          cfg.Web.MaxSessions,
		MaxConcurrentExports: int64(cfg.Export.MaxConcurrent),
	})
}
