package transport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailboxhub/internal/eventloop"
)

func setupTcpTestServer(t *testing.T, serverLogic func(net.Conn)) (string, int) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().(*net.TCPAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		serverLogic(conn)
		conn.Close()
	}()

	t.Cleanup(func() {
		listener.Close()
		<-done
	})

	return addr.IP.String(), addr.Port
}

func startTestLoop(t *testing.T) *eventloop.Loop {
	t.Helper()
	loop := eventloop.New(eventloop.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop
}

func TestDial_ReceivesSplitLinesAndSends(t *testing.T) {
	received := make(chan string, 1)
	host, port := setupTcpTestServer(t, func(conn net.Conn) {
		conn.Write([]byte("12"))
		time.Sleep(30 * time.Millisecond)
		conn.Write([]byte("3\nhello\n"))

		line, err := bufio.NewReader(conn).ReadString('\n')
		if err == nil {
			received <- line
		}
	})

	loop := startTestLoop(t)
	msgs := make(chan string, 8)

	var tr *Transport
	err := loop.Invoke(context.Background(), func() error {
		var err error
		tr, err = Dial(context.Background(), host, port, func(msg string) { msgs <- msg }, Config{
			Scheduler:    loop,
			PollInterval: 5 * time.Millisecond,
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "123", waitFor(t, msgs))
	assert.Equal(t, "hello", waitFor(t, msgs))

	require.NoError(t, loop.Invoke(context.Background(), func() error { return tr.Send("on") }))
	assert.Equal(t, "on\n", waitFor(t, received))

	require.NoError(t, loop.Invoke(context.Background(), tr.Close))
}

func TestDial_PeerCloseReported(t *testing.T) {
	host, port := setupTcpTestServer(t, func(conn net.Conn) {
		conn.Write([]byte("bye\n"))
	})

	loop := startTestLoop(t)
	msgs := make(chan string, 8)
	errs := make(chan error, 8)

	var tr *Transport
	require.NoError(t, loop.Invoke(context.Background(), func() error {
		var err error
		tr, err = Dial(context.Background(), host, port, func(msg string) { msgs <- msg }, Config{
			Scheduler:    loop,
			PollInterval: 5 * time.Millisecond,
			OnError:      func(err error) { errs <- err },
		})
		return err
	}))

	assert.Equal(t, "bye", waitFor(t, msgs))
	err := waitFor(t, errs)
	assert.True(t, IsConnectionClosed(err), "got %v", err)

	var state State
	require.NoError(t, loop.Invoke(context.Background(), func() error {
		state = tr.State()
		return nil
	}))
	assert.Equal(t, StateClosed, state)
}

func TestDial_ConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	tr, err := Dial(context.Background(), "127.0.0.1", port, func(string) {}, Config{
		Scheduler: eventloop.NewManual(),
	})

	assert.Nil(t, tr)
	var connectErr *ConnectError
	require.True(t, errors.As(err, &connectErr), "got %T", err)
	assert.Contains(t, connectErr.Addr, "127.0.0.1")
}

func TestTryRead_WouldBlockOnIdleSocket(t *testing.T) {
	release := make(chan struct{})
	host, port := setupTcpTestServer(t, func(conn net.Conn) {
		<-release
	})
	defer close(release)

	conn, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()

	sock, err := newTCPSocket(conn.(*net.TCPConn), time.Second)
	require.NoError(t, err)

	start := time.Now()
	res := sock.TryRead(make([]byte, 16))

	assert.Equal(t, ReadWouldBlock, res.Status)
	assert.NoError(t, res.Err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func waitFor[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting")
		var zero T
		return zero
	}
}
