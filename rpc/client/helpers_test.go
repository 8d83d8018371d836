package client

import (
	"testing"

	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/ValentinKolb/dSO/rpc/serializer"
	"github.com/ValentinKolb/dSO/rpc/server"
	"github.com/ValentinKolb/dSO/rpc/transport"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// In-process transports
// --------------------------------------------------------------------------

// serverTransport hands the server's handler to the test instead of listening
type serverTransport struct {
	handler  transport.ServerHandleFunc
	listened chan struct{}
	stop     chan struct{}
}

func (s *serverTransport) RegisterHandler(h transport.ServerHandleFunc) { s.handler = h }
func (s *serverTransport) RegisterMetrics(transport.MetricsWriteFunc)   {}

func (s *serverTransport) Listen(common.ServerConfig) error {
	close(s.listened)
	<-s.stop
	return nil
}

func (s *serverTransport) Shutdown() error {
	close(s.stop)
	return nil
}

// loopback calls the server handler directly
type loopback struct {
	handler transport.ServerHandleFunc
}

func (l *loopback) Connect(common.ClientConfig) error { return nil }
func (l *loopback) Close() error                      { return nil }

func (l *loopback) Send(service string, req []byte) ([]byte, error) {
	return l.handler(service, req), nil
}

// --------------------------------------------------------------------------
// Fixture
// --------------------------------------------------------------------------

var testConfig = common.ClientConfig{Endpoints: []string{"in-process"}, PollIntervalMillis: 2}

// startServer runs a server until the test ends and returns its handler
func startServer(t *testing.T, greedy bool) transport.ServerHandleFunc {
	t.Helper()
	st := &serverTransport{listened: make(chan struct{}), stop: make(chan struct{})}
	s := server.NewRPCServer(common.ServerConfig{GreedyLocks: greedy, LogLevel: "warn"}, st, serializer.NewGOBSerializer())

	done := make(chan error)
	go func() { done <- s.Serve() }()
	<-st.listened

	t.Cleanup(func() {
		require.NoError(t, s.Shutdown())
		require.NoError(t, <-done)
	})
	return st.handler
}

func newLocks(t *testing.T, handler transport.ServerHandleFunc) *RPCLocks {
	t.Helper()
	c, err := NewRPCLocks(testConfig, &loopback{handler: handler}, serializer.NewGOBSerializer())
	require.NoError(t, err)
	return c
}

func newMaps(t *testing.T, handler transport.ServerHandleFunc) *RPCMaps {
	t.Helper()
	c, err := NewRPCMaps(testConfig, &loopback{handler: handler}, serializer.NewGOBSerializer())
	require.NoError(t, err)
	return c
}
