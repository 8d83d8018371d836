// Package transport defines the interfaces for moving serialized RPC
// messages between dSO clients and the server.
//
// Key Components:
//
//   - IRPCClientTransport: sends a request to a named service and returns the
//     response bytes.
//
//   - IRPCServerTransport: receives requests, hands them to a ServerHandleFunc
//     together with the service name, and exposes server metrics.
//
// The http subpackage contains the implementation used by the dSO server.
package transport
