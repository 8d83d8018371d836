// Package common provides the data structures shared by the dSO RPC client
// and server: the Message protocol, configuration structures and logging.
//
// Key Components:
//
//   - Message: the single structure used for all requests and responses.
//     Lock operations carry lock id, client id, thread id and level, map
//     operations carry map id, key and value. Factory functions build the
//     request and response of every operation.
//
//   - MessageType: enumeration of all operations, grouped into lock
//     operations (lock, trylock, unlock, wait, notify, interrupt, query,
//     reestablish, recall-commit, poll), map operations (map-create, map-put,
//     map-get, map-remove, map-size, map-evict, map-release, map-delete) and
//     control messages (success, error, disconnect). Types are encoded as
//     strings in JSON.
//
//   - ServerConfig: lock arbitration mode, evictor settings, request limiter,
//     endpoint and log level.
//
//   - ClientConfig: endpoints, timeouts, retries and the poll interval of
//     blocking lock calls.
//
//   - Logger: a logger.ILogger factory for Dragonboat's logging facade that
//     writes "LEVEL | name | message" lines.
package common
