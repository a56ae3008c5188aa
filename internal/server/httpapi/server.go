// Package httpapi exposes the mutation operations and the broadcast channel
// over HTTP: a JSON API guarded by the auth middleware, plus the websocket
// endpoint clients subscribe to for change events.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mbakke/listsync/internal/logging"
	"github.com/mbakke/listsync/internal/server/broadcast"
	"github.com/mbakke/listsync/internal/server/services"
)

type Server struct {
	address   string
	logger    logging.Logger
	users     *services.UserService
	lists     *services.ListService
	hub       *broadcast.Hub
	jwtSecret []byte
}

func NewServer(address string, l logging.Logger, us *services.UserService, ls *services.ListService, hub *broadcast.Hub, secretKey string) *Server {
	return &Server{
		address:   address,
		logger:    l.With("module", "http_server"),
		users:     us,
		lists:     ls,
		hub:       hub,
		jwtSecret: []byte(secretKey),
	}
}

// Router builds the full route table. Split out from Run so tests can mount
// it on an httptest server.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.Methods(http.MethodPost).Path("/api/register").HandlerFunc(s.handleRegister)
	r.Methods(http.MethodPost).Path("/api/login").HandlerFunc(s.handleLogin)

	r.Methods(http.MethodGet).Path("/api/lists").HandlerFunc(s.requireAuth(s.handleGetLists))
	r.Methods(http.MethodPost).Path("/api/lists").HandlerFunc(s.requireAuth(s.handleCreateList))
	r.Methods(http.MethodPatch).Path("/api/lists/{listID}").HandlerFunc(s.requireAuth(s.handleUpdateListName))
	r.Methods(http.MethodDelete).Path("/api/lists/{listID}").HandlerFunc(s.requireAuth(s.handleDeleteList))
	r.Methods(http.MethodPost).Path("/api/lists/{listID}/share").HandlerFunc(s.requireAuth(s.handleShareList))
	r.Methods(http.MethodPost).Path("/api/lists/{listID}/items").HandlerFunc(s.requireAuth(s.handleAddItem))
	r.Methods(http.MethodPost).Path("/api/items/{itemID}/toggle").HandlerFunc(s.requireAuth(s.handleToggleItem))
	r.Methods(http.MethodDelete).Path("/api/items/{itemID}").HandlerFunc(s.requireAuth(s.handleDeleteItem))

	r.Methods(http.MethodGet).Path("/ws").HandlerFunc(s.requireAuth(s.hub.ServeHTTP))

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.address, Handler: s.Router()}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		_ = srv.Shutdown(context.Background())
		s.hub.Close()
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
