// Package rpc provides the remote procedure call layer of dSO. It connects
// clients to the lock coordinator and the evictable maps of a dSO server.
//
// The package is organized into several subpackages:
//
//   - common: the Message protocol, configuration structures and logging.
//
//   - transport: network communication abstractions with an HTTP
//     implementation.
//
//   - serializer: message serialization (JSON, GOB).
//
//   - client: RPC clients for locks and maps.
//
//   - server: the RPC server and its service adapters.
package rpc
