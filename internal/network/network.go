package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/HannahMarsh/onion-router/config"
	"github.com/HannahMarsh/onion-router/internal/api/api_functions"
	"github.com/HannahMarsh/onion-router/internal/model/registry"
	"github.com/HannahMarsh/onion-router/internal/model/relay"
	"github.com/HannahMarsh/onion-router/internal/model/user"
	pkgerrors "github.com/pkg/errors"
)

// Network is a whole overlay running in one process: a registry, its relays and users.
type Network struct {
	Registry *registry.Registry
	Relays   []*relay.Relay
	Users    []*user.User
	servers  []*http.Server
}

// Serve binds port before returning, then serves h in the background.
func Serve(port int, h http.Handler) (*http.Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to listen on port %d", port)
	}
	server := &http.Server{Handler: h}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "port", port, "err", err)
		}
	}()
	return server, nil
}

// Launch starts the registry, cfg.NumRelays relays and cfg.NumUsers users.
// Relays register as soon as they listen. A failed registration is logged and the relay keeps running.
func Launch(ctx context.Context, cfg *config.Config) (*Network, error) {
	reg, err := registry.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	nw := &Network{Registry: reg}

	if err = nw.serve(cfg.Registry.Port, reg.Router()); err != nil {
		nw.Shutdown(ctx)
		return nil, err
	}
	slog.Info("🌏 registry listening", "address", cfg.Registry.Address)

	transport := api_functions.NewHTTPTransport(api_functions.HostResolver(cfg.HostFor), cfg.TransportTimeout(), cfg.Transport.Compress)
	registryClient := api_functions.NewRegistryClient(cfg.Registry.Address, cfg.TransportTimeout(), cfg.RegistryCacheTTL())

	for id := 0; id < cfg.NumRelays; id++ {
		r, err := relay.NewRelay(id, cfg, transport)
		if err != nil {
			nw.Shutdown(ctx)
			return nil, err
		}
		if err = nw.serve(r.Address, r.Router()); err != nil {
			nw.Shutdown(ctx)
			return nil, err
		}
		if err = r.RegisterWithRegistry(ctx, registryClient); err != nil {
			slog.Error("Relay registration failed", "id", id, "err", err)
		}
		nw.Relays = append(nw.Relays, r)
	}

	for id := 0; id < cfg.NumUsers; id++ {
		u := user.NewUser(id, cfg, registryClient, transport, nil)
		if err = nw.serve(u.Address, u.Router()); err != nil {
			nw.Shutdown(ctx)
			return nil, err
		}
		nw.Users = append(nw.Users, u)
	}

	slog.Info("Network launched", "relays", len(nw.Relays), "users", len(nw.Users))
	return nw, nil
}

func (nw *Network) serve(port int, h http.Handler) error {
	server, err := Serve(port, h)
	if err != nil {
		return err
	}
	nw.servers = append(nw.servers, server)
	return nil
}

// Shutdown stops every server and closes the registry storage.
func (nw *Network) Shutdown(ctx context.Context) {
	for _, server := range nw.servers {
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server forced to shutdown", "err", err)
		}
	}
	nw.servers = nil
	if nw.Registry != nil {
		if err := nw.Registry.Close(); err != nil {
			slog.Error("Failed to close registry", "err", err)
		}
	}
}
