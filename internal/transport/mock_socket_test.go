package transport

import (
	"errors"
)

// mockSocket implements Socket for testing. Each entry in reads is returned
// by one TryRead; an empty queue reads as would-block.
type mockSocket struct {
	reads    []ReadResult
	payloads [][]byte

	writes   [][]byte
	writeErr error
	shortBy  int

	closed     bool
	closeCalls int
	readCalls  int
}

func (m *mockSocket) queueData(chunks ...string) {
	for _, c := range chunks {
		m.reads = append(m.reads, ReadResult{N: len(c), Status: ReadData})
		m.payloads = append(m.payloads, []byte(c))
	}
}

func (m *mockSocket) queueResult(res ReadResult) {
	m.reads = append(m.reads, res)
	m.payloads = append(m.payloads, nil)
}

func (m *mockSocket) TryRead(p []byte) ReadResult {
	m.readCalls++
	if m.closed {
		return ReadResult{Status: ReadFailed, Err: errors.New("read on closed socket")}
	}
	if len(m.reads) == 0 {
		return ReadResult{Status: ReadWouldBlock}
	}
	res, payload := m.reads[0], m.payloads[0]
	if res.Status == ReadData && len(payload) > len(p) {
		// hand out what fits, keep the rest queued
		copy(p, payload)
		m.payloads[0] = payload[len(p):]
		m.reads[0].N = len(m.payloads[0])
		return ReadResult{N: len(p), Status: ReadData}
	}
	m.reads, m.payloads = m.reads[1:], m.payloads[1:]
	if res.Status == ReadData {
		copy(p, payload)
	}
	return res
}

func (m *mockSocket) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	return len(p) - m.shortBy, nil
}

func (m *mockSocket) Close() error {
	m.closeCalls++
	m.closed = true
	return nil
}

func (m *mockSocket) RemoteAddr() string {
	return "mock:0"
}
