//go:build unix

package transport

import (
	"errors"

	"golang.org/x/sys/unix"
)

// TryRead issues a single read(2) on the socket's descriptor. Returning true
// from the callback tells the runtime not to park on EAGAIN, so the call never
// waits for data.
func (s *tcpSocket) TryRead(p []byte) ReadResult {
	var (
		n       int
		readErr error
	)
	err := s.raw.Read(func(fd uintptr) bool {
		for {
			n, readErr = unix.Read(int(fd), p)
			if !errors.Is(readErr, unix.EINTR) {
				return true
			}
		}
	})
	if err != nil {
		return ReadResult{Status: ReadFailed, Err: err}
	}
	return classifyRead(n, readErr)
}

func classifyRead(n int, err error) ReadResult {
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK):
		return ReadResult{Status: ReadWouldBlock}
	case err != nil:
		return ReadResult{Status: ReadFailed, Err: err}
	case n == 0:
		return ReadResult{Status: ReadEOF}
	default:
		return ReadResult{N: n, Status: ReadData}
	}
}
