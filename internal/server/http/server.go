// Package httpserver exposes the payables API over HTTP.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/and161185/payables/internal/auth"
)

const (
	defaultReadTimeout       = 30 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	shutdownTimeout          = 5 * time.Second
)

// Server is an HTTP listener bound to one router.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// NewRouter wires middleware and routes. /authenticate is public, every
// /accounts route requires an identity.
func NewRouter(h *Handlers, gate *auth.Gate, log *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID, Logging(log), Recover(log), gate.Middleware)

	r.HandleFunc("/authenticate", h.Authenticate).Methods(http.MethodPost)

	api := r.PathPrefix("/accounts").Subrouter()
	api.Use(auth.RequireIdentity)
	api.HandleFunc("", h.CreateAccount).Methods(http.MethodPost)
	api.HandleFunc("", h.ListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/total-paid", h.TotalPaid).Methods(http.MethodGet)
	api.HandleFunc("/import", h.ImportUpload).Methods(http.MethodPost)
	if h.objects != nil {
		api.HandleFunc("/import/s3", h.ImportObject).Methods(http.MethodPost)
	}
	api.HandleFunc("/{id}", h.GetAccount).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.UpdateAccount).Methods(http.MethodPut)
	api.HandleFunc("/{id}/status", h.SetStatus).Methods(http.MethodPatch)
	return r
}

// New constructs a server listening on addr.
func New(addr string, handler http.Handler, log *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       defaultReadTimeout,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
		},
		log: log,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		s.log.Info("http listening", zap.String("addr", s.srv.Addr))
		err := s.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("http listener %s: %w", s.srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-done
}
