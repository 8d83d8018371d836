// Package server implements the dSO RPC server. It owns the lock coordinator
// (lib/locks) and the evictable maps (lib/objects with lib/eviction) and
// exposes them as two services behind one transport.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface of a service. Handle processes a request,
//     Disconnect drops all state a service keeps for a client.
//
//   - NewLockServerAdapter: the "locks" service. Lock operations are routed to
//     a locks.Manager. Locks answer asynchronously (awards, rejections,
//     recalls, wait timeouts, query results), so all responses go into a
//     per-client Mailboxes sink; every reply carries the events queued for
//     the requesting client, and "poll" fetches them without doing anything
//     else.
//
//   - NewMapServerAdapter: the "maps" service. It creates and edits evictable
//     maps, faults entries into clients on get (which protects them from
//     eviction until they are released) and runs eviction passes on demand.
//
//   - NewRPCServer: creates a server with the given transport and serializer.
//     Serve wires both services, starts the periodic evictor and blocks in
//     the transport; Shutdown stops it.
//
// A "disconnect" message sent to any service clears the client everywhere:
// its lock contexts, its undelivered events and its faulted entries.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  GreedyLocks: true,
//	  Eviction:    common.EvictionConfig{SleepSeconds: 900, Periodic: true},
//	  Endpoint:    "0.0.0.0:8080",
//	  LogLevel:    "info",
//	}
//
//	s := server.NewRPCServer(config, http.NewHttpServerTransport(), serializer.NewJSONSerializer())
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server handles concurrent requests. Operations on one lock id or one
//	map are serialized by the underlying managers. Serve must be called only
//	once.
package server
