package telnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/actioncore/internal/config"
)

// SessionHandler runs one client's session. ctx is cancelled when the
// server stops; HandleSession must then return promptly.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn *Conn) error
}

// Server accepts telnet clients and runs a SessionHandler per connection.
type Server struct {
	cfg     config.ConsoleConfig
	handler SessionHandler
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer creates a Server for cfg.Addr().
//
// Precondition: handler and logger must be non-nil.
func NewServer(cfg config.ConsoleConfig, handler SessionHandler, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[*Conn]struct{}),
	}
}

// ListenAndServe accepts connections until Stop is called.
//
// Postcondition: Returns nil after Stop, or the listen error.
func (s *Server) ListenAndServe() error {
	lis, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis until Stop is called. lis is closed on
// return.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		lis.Close()
		return nil
	}
	s.listener = lis
	s.mu.Unlock()
	defer lis.Close()

	s.logger.Info("console listening", zap.String("addr", lis.Addr().String()))
	for {
		raw, err := lis.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accepting console connection", zap.Error(err))
			continue
		}
		conn := NewConn(raw, s.cfg.ReadTimeout, s.cfg.WriteTimeout)
		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			raw.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn *Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	start := time.Now()
	addr := conn.RemoteAddr().String()
	s.logger.Info("console client connected", zap.String("remote_addr", addr))

	if err := conn.Negotiate(); err != nil {
		s.logger.Warn("telnet negotiation failed", zap.String("remote_addr", addr), zap.Error(err))
		return
	}
	err := s.handler.HandleSession(s.ctx, conn)
	fields := []zap.Field{zap.String("remote_addr", addr), zap.Duration("duration", time.Since(start))}
	if err != nil {
		s.logger.Debug("console session ended", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Info("console session ended cleanly", fields...)
}

// Stop closes the listener and every open connection, then waits for the
// session handlers to return.
func (s *Server) Stop() {
	s.mu.Lock()
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Info("console stopped")
}

// Addr returns the bound address, or "" before Serve.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
