package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	CommandOn  = "on"
	CommandOff = "off"
)

type ClientConnection struct {
	ID      string // key in the manager map
	conn    net.Conn
	server  *Server
	Limiter *rate.Limiter

	mu     sync.Mutex // guards Writer
	Writer *bufio.Writer
}

func NewClientConnection(conn net.Conn, server *Server) *ClientConnection {
	return &ClientConnection{
		ID:      uuid.NewString(),
		conn:    conn,
		server:  server,
		Writer:  bufio.NewWriter(conn),
		Limiter: rate.NewLimiter(rate.Limit(server.cfg.CommandRate), server.cfg.CommandBurst),
	}
}

// Listen reads newline-terminated commands until the client goes away or
// the connection is closed.
func (c *ClientConnection) Listen() {
	defer c.conn.Close()
	logger := c.server.logger.With("client_id", c.ID)
	reader := bufio.NewReaderSize(c.conn, c.server.cfg.MaxLineLength)

	logger.Info("client_started_listening",
		"remote_addr", c.conn.RemoteAddr().String(),
	)
	c.extendDeadline()

	discarding := false
	for {
		line, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if !discarding {
				logger.Warn("message_too_large",
					"max_size", c.server.cfg.MaxLineLength,
				)
			}
			discarding = true
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("client_disconnected")
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				logger.Warn("client_read_timeout")
				return
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error("client_read_error", "error", err)
			return
		}
		c.extendDeadline()

		if discarding {
			// tail of an oversized line
			discarding = false
			continue
		}

		if !c.Limiter.Allow() {
			logger.Warn("rate_limit_exceeded")
			continue
		}

		c.handleCommand(strings.TrimSpace(string(line)))
	}
}

func (c *ClientConnection) handleCommand(cmd string) {
	logger := c.server.logger.With("client_id", c.ID)

	var on bool
	switch cmd {
	case CommandOn:
		on = true
	case CommandOff:
		on = false
	case "":
		return
	default:
		logger.Warn("unknown_command", "command", cmd)
		return
	}

	st, err := c.server.Mailbox.SetLamp(context.Background(), on)
	if err != nil {
		logger.Error("lamp_update_failed", "error", err.Error())
		return
	}
	logger.Info("lamp_switched", "lamp", st.Lamp)
}

func (c *ClientConnection) extendDeadline() {
	if d := c.server.cfg.IdleTimeout; d > 0 {
		c.conn.SetReadDeadline(time.Now().Add(d))
	}
}

// Send writes data plus the newline delimiter and flushes.
func (c *ClientConnection) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d := c.server.cfg.WriteTimeout; d > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(d))
	}
	if _, err := c.Writer.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := c.Writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := c.Writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

func (c *ClientConnection) Close() {
	c.conn.Close()
}
