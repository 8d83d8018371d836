package server

import (
	"testing"

	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/ValentinKolb/dSO/rpc/serializer"
	"github.com/ValentinKolb/dSO/rpc/transport"
	"github.com/stretchr/testify/require"
)

// fakeTransport captures the handler instead of listening on a socket
type fakeTransport struct {
	handler  transport.ServerHandleFunc
	metrics  transport.MetricsWriteFunc
	stop     chan struct{}
	listened chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{stop: make(chan struct{}), listened: make(chan struct{})}
}

func (f *fakeTransport) RegisterHandler(h transport.ServerHandleFunc) { f.handler = h }
func (f *fakeTransport) RegisterMetrics(m transport.MetricsWriteFunc) { f.metrics = m }

func (f *fakeTransport) Listen(common.ServerConfig) error {
	close(f.listened)
	<-f.stop
	return nil
}

func (f *fakeTransport) Shutdown() error {
	close(f.stop)
	return nil
}

type testServer struct {
	*RPCServer
	transport  *fakeTransport
	serializer serializer.IRPCSerializer
}

func newTestServer(t *testing.T, greedy bool) *testServer {
	t.Helper()
	ft := newFakeTransport()
	ser := serializer.NewJSONSerializer()
	s := NewRPCServer(common.ServerConfig{
		GreedyLocks: greedy,
		LogLevel:    "warn",
	}, ft, ser)
	require.NoError(t, s.init())
	t.Cleanup(s.close)
	return &testServer{RPCServer: s, transport: ft, serializer: ser}
}

// call sends a request through the registered transport handler
func (s *testServer) call(t *testing.T, service string, req *common.Message) *common.Message {
	t.Helper()
	data, err := s.serializer.Serialize(*req)
	require.NoError(t, err)
	var resp common.Message
	require.NoError(t, s.serializer.Deserialize(s.transport.handler(service, data), &resp))
	return &resp
}

// tryCall is call without assertions, for use inside assert.Eventually
func (s *testServer) tryCall(service string, req *common.Message) (*common.Message, error) {
	data, err := s.serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}
	var resp common.Message
	if err := s.serializer.Deserialize(s.transport.handler(service, data), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *testServer) lock(t *testing.T, req *common.Message) *common.Message {
	t.Helper()
	return s.call(t, ServiceLocks, req)
}

func (s *testServer) maps(t *testing.T, req *common.Message) *common.Message {
	t.Helper()
	return s.call(t, ServiceMaps, req)
}
