package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Server serves the health sync API. Writes have no deadline because a
// synchronous POST /sync lasts as long as the run.
type Server struct {
	srv    *http.Server
	logger *zap.Logger

	mu sync.Mutex
	ln net.Listener
}

func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Minute,
			IdleTimeout:       2 * time.Minute,
			ErrorLog:          zap.NewStdLog(logger.Named("http")),
		},
		logger: logger,
	}
}

// Listen binds the configured address and returns the bound one, which
// differs from it for ":0". Start listens on its own when Listen was not
// called.
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		ln, err := net.Listen("tcp", s.srv.Addr)
		if err != nil {
			return nil, err
		}
		s.ln = ln
	}
	return s.ln.Addr(), nil
}

// Start serves until Stop. A clean shutdown returns nil.
func (s *Server) Start() error {
	addr, err := s.Listen()
	if err != nil {
		return err
	}
	s.logger.Info("Health sync API listening", zap.Stringer("addr", addr))

	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Health sync API shutting down")
	err := s.srv.Shutdown(ctx)

	// a listener bound by Listen but never served is not closed by Shutdown
	s.mu.Lock()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.mu.Unlock()
	return err
}
