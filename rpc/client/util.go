package client

import (
	"fmt"

	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/ValentinKolb/dSO/rpc/serializer"
	"github.com/ValentinKolb/dSO/rpc/transport"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// Service names on the server
const (
	serviceLocks = "locks"
	serviceMaps  = "maps"
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by RPCLocks and RPCMaps with composition pattern
type rpcClientAdapter struct {
	service    string
	clientID   string
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// newClientAdapter connects the transport and generates a client id
func newClientAdapter(
	service string,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (rpcClientAdapter, error) {
	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return rpcClientAdapter{}, err
	}
	return rpcClientAdapter{
		service:    service,
		clientID:   uuid.NewString(),
		config:     config,
		transport:  transport,
		serializer: serializer,
	}, nil
}

// ClientID returns the id the server knows this client by
func (a *rpcClientAdapter) ClientID() string {
	return a.clientID
}

// invoke sends a request to the adapter's service
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(a.service, req, a.transport, a.serializer)
}

// disconnect drops the server side state of the client and closes the transport
func (a *rpcClientAdapter) disconnect() error {
	_, err := a.invoke(common.NewDisconnectRequest(a.clientID))
	if cerr := a.transport.Close(); err == nil {
		err = cerr
	}
	return err
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a service name, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type
func invokeRPCRequest(service string, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := transport.Send(service, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, fmt.Errorf("RPC %s - Error: %s", service, err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return resp, fmt.Errorf("RPC %s - Error: %s", service, resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC %s - Unexpected message type: %s, expected %s", service, resp.MsgType, req.MsgType)
	}

	// Return the response
	return resp, nil
}
