//go:build !unix

package transport

import (
	"errors"
	"io"
	"os"
	"time"
)

// pollWindow bounds how long TryRead may wait on platforms without a raw
// non-blocking read. An already expired deadline would fail before reading.
const pollWindow = time.Millisecond

func (s *tcpSocket) TryRead(p []byte) ReadResult {
	if err := s.conn.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		return ReadResult{Status: ReadFailed, Err: err}
	}
	n, err := s.conn.Read(p)
	switch {
	case n > 0:
		return ReadResult{N: n, Status: ReadData}
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ReadResult{Status: ReadWouldBlock}
	case errors.Is(err, io.EOF):
		return ReadResult{Status: ReadEOF}
	case err != nil:
		return ReadResult{Status: ReadFailed, Err: err}
	default:
		return ReadResult{Status: ReadWouldBlock}
	}
}
