// Package device simulates the mailbox sensor unit: a TCP server that
// reports its letter count as newline-terminated text and accepts "on" and
// "off" lamp commands.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	DefaultCommandRate   = 10
	DefaultCommandBurst  = 20
	DefaultMaxLineLength = 4096
	DefaultWriteTimeout  = 2 * time.Second
)

type Config struct {
	Addr string
	// DropInterval simulates a letter every interval; 0 disables.
	DropInterval  time.Duration
	CommandRate   float64
	CommandBurst  int
	MaxLineLength int
	WriteTimeout  time.Duration
	// IdleTimeout closes silent clients; 0 keeps them forever.
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.CommandRate <= 0 {
		c.CommandRate = DefaultCommandRate
	}
	if c.CommandBurst < 1 {
		c.CommandBurst = DefaultCommandBurst
	}
	if c.MaxLineLength < 16 {
		c.MaxLineLength = DefaultMaxLineLength
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type Server struct {
	cfg     Config
	Manager *ConnectionManager
	Mailbox *Mailbox
	logger  *slog.Logger

	listener net.Listener
	quitChan chan struct{}
	// closed on Stop; every goroutine selects on it

	mu       sync.Mutex // orders goroutine registration against Stop
	stopping bool       // set under mu; no goroutine is registered afterwards
	stopOnce sync.Once
	wg       sync.WaitGroup
	// counts the drop ticker and one goroutine per client, Stop waits on it
}

func NewServer(cfg Config, mailbox *Mailbox) *Server {
	cfg.applyDefaults()
	return &Server{
		cfg:      cfg,
		Manager:  NewConnectionManager(cfg.Logger),
		Mailbox:  mailbox,
		logger:   cfg.Logger,
		quitChan: make(chan struct{}),
	}
}

// Listen binds the listening socket without accepting yet.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to start device server: %w", err)
	}
	s.listener = listener
	s.logger.Info("device_server_listening", "addr", listener.Addr().String())
	return nil
}

// Addr is the bound address, useful after listening on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Serve accepts clients until Stop. It returns nil after a clean stop.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("device server is not listening")
	}
	if s.cfg.DropInterval > 0 {
		// the simulated letters arrive on their own goroutine
		s.goTracked(func() { s.runDrops(s.cfg.DropInterval) })
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quitChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("failed_to_accept_connection", "error", err.Error())
			continue
		}
		// one goroutine per client; a connection that slipped in while
		// stopping is closed right away instead of being served
		if !s.goTracked(func() { s.handleConnection(conn) }) {
			conn.Close()
			return nil
		}
	}
}

// goTracked starts fn on its own goroutine counted by wg, unless Stop has
// begun. wg.Add is done under mu so it can never race with Stop's wg.Wait.
func (s *Server) goTracked(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *Server) handleConnection(conn net.Conn) {
	client := NewClientConnection(conn, s)
	s.Manager.AddConnection(client)
	defer s.Manager.RemoveConnection(client)

	select {
	case <-s.quitChan:
		// accepted while stopping, after CloseAllConnections ran
		client.Close()
		return
	default:
	}

	// a fresh client learns the current count right away instead of showing
	// the initial label until the next drop
	if err := client.Send(s.Mailbox.State().Line()); err != nil {
		s.logger.Warn("greeting_failed", "client_id", client.ID, "error", err.Error())
		client.Close()
		return
	}
	client.Listen()
}

// Drop records a letter and reports the new count to every client. The
// count is persisted before it is broadcast, so a client never sees a number
// the store does not have.
func (s *Server) Drop(ctx context.Context) (State, error) {
	st, err := s.Mailbox.Drop(ctx)
	if err != nil {
		return st, err
	}
	delivered := s.Manager.Broadcast(st.Line())
	s.logger.Info("letter_dropped", "count", st.Count, "delivered", delivered)
	return st, nil
}

func (s *Server) runDrops(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.quitChan:
			return
		case <-ticker.C:
			if _, err := s.Drop(context.Background()); err != nil {
				s.logger.Error("drop_failed", "error", err.Error())
			}
		}
	}
}

// Stop closes the listener and every client and waits for their goroutines.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true // from here on goTracked refuses new goroutines
		close(s.quitChan) // wakes the drop ticker and any waiting select
		s.mu.Unlock()
		if s.listener != nil { // unblocks Accept in Serve
			s.listener.Close()
		}
		s.Manager.CloseAllConnections() // each client's Listen returns on the closed conn
		s.wg.Wait()                     // every registered goroutine has finished
		s.logger.Info("device_server_stopped")
	})
}
