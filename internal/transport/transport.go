package transport

// transport.go = line-oriented link to the mailbox unit, polled from the event loop.

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"mailboxhub/internal/eventloop"
)

const (
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultReadChunkSize = 1024
	DefaultMaxLineLength = 64 * 1024
	DefaultDialTimeout   = 5 * time.Second
	DefaultWriteTimeout  = 2 * time.Second

	delimiter = '\n'
)

// MessageHandler receives one stripped line per delimiter.
type MessageHandler func(msg string)

// ErrorHandler receives failures found while polling: DecodeError for a
// malformed line, TransportError for a dead or misbehaving connection.
type ErrorHandler func(err error)

// Config holds the tunables of a Transport. Zero values pick the defaults.
type Config struct {
	Scheduler     eventloop.Scheduler // required
	OnError       ErrorHandler
	PollInterval  time.Duration
	ReadChunkSize int
	MaxLineLength int
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
	Logger        *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ReadChunkSize <= 0 {
		c.ReadChunkSize = DefaultReadChunkSize
	}
	if c.MaxLineLength <= 0 {
		c.MaxLineLength = DefaultMaxLineLength
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.OnError == nil {
		c.OnError = func(error) {}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Stats counts what a Transport has done so far.
type Stats struct {
	Polls            int
	BytesReceived    int
	MessagesReceived int
	DecodeErrors     int
	CommandsSent     int
}

// Transport turns a byte-stream socket into discrete line messages. It is not
// safe for concurrent use: every method, and every poll, runs on the goroutine
// that drives the Scheduler.
type Transport struct {
	ID string

	sock      Socket
	sched     eventloop.Scheduler
	onMessage MessageHandler
	onError   ErrorHandler
	logger    *slog.Logger

	pollInterval time.Duration
	maxLine      int
	chunk        []byte
	buf          []byte
	head         int  // start of unconsumed bytes in buf
	discarding   bool // dropping bytes up to the next delimiter after an oversized line

	pending      eventloop.Timer
	state        State
	closedByUser bool
	stats        Stats
}

// Dial connects to host:port and returns an OPEN Transport whose first poll is
// already scheduled. A failed connect returns a *ConnectError and nothing is
// scheduled.
func Dial(ctx context.Context, host string, port int, onMessage MessageHandler, cfg Config) (*Transport, error) {
	cfg.applyDefaults()
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, &ConnectError{Addr: addr, Err: fmt.Errorf("unexpected connection type %T", conn)}
	}
	sock, err := newTCPSocket(tcpConn, cfg.WriteTimeout)
	if err != nil {
		conn.Close()
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	return New(sock, onMessage, cfg)
}

// New wraps an already connected socket.
func New(sock Socket, onMessage MessageHandler, cfg Config) (*Transport, error) {
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("transport: scheduler is required")
	}
	if onMessage == nil {
		return nil, fmt.Errorf("transport: message handler is required")
	}
	cfg.applyDefaults()

	t := &Transport{
		ID:           uuid.NewString(),
		sock:         sock,
		sched:        cfg.Scheduler,
		onMessage:    onMessage,
		onError:      cfg.OnError,
		logger:       cfg.Logger,
		pollInterval: cfg.PollInterval,
		maxLine:      cfg.MaxLineLength,
		chunk:        make([]byte, cfg.ReadChunkSize),
		state:        StateConnecting,
	}
	t.logger = t.logger.With("transport_id", t.ID, "remote_addr", sock.RemoteAddr())

	t.state = StateOpen
	// first poll goes through the scheduler so no handler runs before New returns
	t.pending = t.sched.AfterFunc(0, t.poll)
	t.logger.Info("transport_opened", "poll_interval", t.pollInterval)
	return t, nil
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	return t.state
}

// Stats returns a copy of the counters.
func (t *Transport) Stats() Stats {
	return t.stats
}

// Send writes text followed by the delimiter in a single write.
func (t *Transport) Send(text string) error {
	if t.state != StateOpen {
		return &TransportError{Op: "send", Err: ErrNotOpen}
	}
	if strings.IndexByte(text, delimiter) >= 0 || !utf8.ValidString(text) {
		return &TransportError{Op: "send", Err: ErrInvalidCommand}
	}

	frame := make([]byte, 0, len(text)+1)
	frame = append(frame, text...)
	frame = append(frame, delimiter)

	n, err := t.sock.Write(frame)
	if err != nil {
		t.logger.Warn("send_failed", "command", text, "error", err)
		return &TransportError{Op: "send", Err: err}
	}
	if n < len(frame) {
		t.logger.Warn("short_write", "command", text, "written", n, "size", len(frame))
	}
	t.stats.CommandsSent++
	t.logger.Debug("command_sent", "command", text)
	return nil
}

// Close cancels the pending poll and releases the socket. Closing twice
// returns ErrAlreadyClosed. Closing after a fatal read failure, which already
// released the socket, succeeds once.
func (t *Transport) Close() error {
	if t.closedByUser {
		return ErrAlreadyClosed
	}
	t.closedByUser = true
	if t.state == StateClosed {
		return nil
	}

	t.state = StateClosed
	t.cancelPending()
	if err := t.sock.Close(); err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	t.logger.Info("transport_closed", "messages_received", t.stats.MessagesReceived, "commands_sent", t.stats.CommandsSent)
	return nil
}

// poll is one cycle: read once, deliver every complete line, re-arm.
func (t *Transport) poll() {
	t.pending = nil
	if t.state != StateOpen {
		return
	}
	// deferred so a panicking handler still leaves the next cycle scheduled
	defer t.rearm()
	t.stats.Polls++

	res := t.sock.TryRead(t.chunk)
	switch res.Status {
	case ReadData:
		t.stats.BytesReceived += res.N
		t.buf = append(t.buf, t.chunk[:res.N]...)
	case ReadWouldBlock:
	case ReadEOF, ReadFailed:
		// lines left behind by a handler that panicked last cycle still go out
		t.drain()
		if t.state != StateOpen {
			return
		}
		cause := res.Err
		if res.Status == ReadEOF {
			cause = ErrConnectionClosed
		}
		t.fail(cause)
		return
	}

	t.drain()
}

func (t *Transport) rearm() {
	if t.state != StateOpen || t.pending != nil {
		return
	}
	t.pending = t.sched.AfterFunc(t.pollInterval, t.poll)
}

// drain hands every complete line in the buffer to the handler, in order.
// head is advanced before each delivery, so a handler that panics never sees
// the same line twice.
func (t *Transport) drain() {
	for t.state == StateOpen {
		i := bytes.IndexByte(t.buf[t.head:], delimiter)
		if i < 0 {
			break
		}
		line := t.buf[t.head : t.head+i]
		t.head += i + 1

		if t.discarding {
			t.discarding = false
			continue
		}
		t.deliver(line)
	}
	t.compact()

	if t.discarding {
		t.buf = t.buf[:0]
		return
	}
	if len(t.buf) > t.maxLine && t.state == StateOpen {
		t.logger.Warn("line_too_long", "buffered", len(t.buf), "max_size", t.maxLine)
		t.buf = t.buf[:0]
		t.discarding = true
		t.onError(&TransportError{Op: "read", Err: ErrLineTooLong})
	}
}

// compact moves the unconsumed tail to the front of the backing array.
func (t *Transport) compact() {
	n := copy(t.buf, t.buf[t.head:])
	t.buf = t.buf[:n]
	t.head = 0
}

func (t *Transport) deliver(line []byte) {
	if !utf8.Valid(line) {
		t.stats.DecodeErrors++
		t.logger.Warn("message_decode_failed", "size", len(line))
		t.onError(&DecodeError{Raw: bytes.Clone(line)})
		return
	}
	t.stats.MessagesReceived++
	t.onMessage(strings.TrimSpace(string(line)))
}

// fail moves to CLOSED after an unrecoverable read and reports why.
func (t *Transport) fail(cause error) {
	t.state = StateClosed
	t.cancelPending()
	if rest := len(t.buf) - t.head; rest > 0 {
		t.logger.Debug("partial_line_dropped", "size", rest)
	}
	t.buf, t.head = nil, 0
	if err := t.sock.Close(); err != nil {
		t.logger.Debug("socket_close_failed", "error", err)
	}

	if IsConnectionClosed(cause) {
		t.logger.Info("peer_disconnected")
	} else {
		t.logger.Error("poll_read_failed", "error", cause)
	}
	t.onError(&TransportError{Op: "read", Err: cause})
}

func (t *Transport) cancelPending() {
	if t.pending != nil {
		t.pending.Cancel()
		t.pending = nil
	}
}
