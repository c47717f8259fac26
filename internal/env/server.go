package environment

import (
	"context"
	"log/slog"
	"net/http"

	"reseller-panel/internal/api"
	"reseller-panel/internal/config"
)

type Servers struct {
	HTTP struct {
		Observability *http.Server
		API           *http.Server
	}
}

func newServers(ctx context.Context, cfg config.Config, logger *slog.Logger, clients *Clients, services *Services) *Servers {
	var servers Servers

	handler := api.NewHandler(services.Continuous, services.Localization, logger.With("component", "api"))

	servers.HTTP.API = &http.Server{
		Handler:           handler.Routes(),
		Addr:              cfg.API.ADDR(),
		ReadTimeout:       cfg.API.ReadTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
		IdleTimeout:       cfg.API.IdleTimeout,
		ReadHeaderTimeout: cfg.API.ReadTimeout,
	}
	servers.HTTP.Observability = initObservability(ctx, logger.WithGroup("http"), clients, cfg)

	return &servers
}
