package transport

import (
	"fmt"
	"io"
	"net"
	"syscall"
	"time"
)

// ReadStatus classifies the outcome of a non-blocking read.
type ReadStatus int

const (
	ReadData       ReadStatus = iota // bytes were returned
	ReadWouldBlock                   // nothing available yet
	ReadEOF                          // peer closed the connection
	ReadFailed                       // any other socket error
)

func (s ReadStatus) String() string {
	switch s {
	case ReadData:
		return "data"
	case ReadWouldBlock:
		return "would_block"
	case ReadEOF:
		return "eof"
	case ReadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ReadResult is what a single non-blocking read produced.
type ReadResult struct {
	N      int
	Status ReadStatus
	Err    error
}

// Socket is the byte-stream carrier a Transport polls. TryRead must return
// immediately whether or not data is available.
//
// On unix the TCP socket issues one read(2) that never waits. Other
// platforms have no raw non-blocking read, so TryRead there waits at most
// pollWindow (1ms) for data before reporting ReadWouldBlock.
type Socket interface {
	TryRead(p []byte) ReadResult
	io.WriteCloser
	RemoteAddr() string
}

// tcpSocket is the Socket used by Dial. The platform-specific TryRead lives
// in socket_unix.go and socket_other.go.
type tcpSocket struct {
	conn         *net.TCPConn
	raw          syscall.RawConn
	writeTimeout time.Duration
}

func newTCPSocket(conn *net.TCPConn, writeTimeout time.Duration) (*tcpSocket, error) {
	// Nagle would hold back short commands
	if err := conn.SetNoDelay(true); err != nil {
		return nil, fmt.Errorf("set no delay: %w", err)
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("raw conn: %w", err)
	}
	return &tcpSocket{conn: conn, raw: raw, writeTimeout: writeTimeout}, nil
}

func (s *tcpSocket) Write(p []byte) (int, error) {
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return s.conn.Write(p)
}

func (s *tcpSocket) Close() error {
	return s.conn.Close()
}

func (s *tcpSocket) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}
