package transport

import (
	"io"

	"github.com/ValentinKolb/dSO/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the name of the addressed service ("locks" or "maps") and a request
// as parameters and returns a response
type ServerHandleFunc func(service string, req []byte) (resp []byte)

// MetricsWriteFunc writes all server metrics in Prometheus text format
type MetricsWriteFunc func(w io.Writer)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// RegisterMetrics registers the writer behind the metrics endpoint
	RegisterMetrics(metrics MetricsWriteFunc)
	// Listen starts the transport layer and listens for incoming requests.
	// It blocks until Shutdown is called or the listener fails.
	Listen(config common.ServerConfig) error
	// Shutdown stops a listening transport
	Shutdown() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to a service of the server and returns the response
	Send(service string, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
