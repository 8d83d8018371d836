// Package client implements the RPC clients of dSO.
//
// Key Components:
//
//   - NewRPCLocks: a lock client. Every instance gets a random UUID as its
//     client id. Blocking calls (Lock, TryLock, Wait, Query) poll the server
//     for the events of their thread; events nobody waits for are returned
//     by Poll.
//
//   - NewRPCMaps: a client of the evictable maps. Entries read with Get are
//     protected from eviction until Release or Close.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:     []string{"localhost:8080"},
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}
//
//	locks, _ := client.NewRPCLocks(config, http.NewHttpClientTransport(), serializer.NewJSONSerializer())
//	defer locks.Close()
//
//	if err := locks.Lock(ctx, "orders/42", 1, "write"); err == nil {
//	  // ...
//	  locks.Unlock("orders/42", 1)
//	}
//
// Thread Safety:
//
//	All clients are safe for concurrent use. Thread ids are chosen by the
//	caller; two goroutines using the same thread id share one lock context.
package client
