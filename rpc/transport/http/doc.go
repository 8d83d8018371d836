// Package http implements the RPC transport of dSO over HTTP.
//
// Every service of the server is reachable as "POST /{service}" with a
// serialized common.Message as body; the response body is the serialized
// reply. If metrics are registered, "GET /metrics" serves them in Prometheus
// text format.
//
// Key Components:
//
//   - httpServerTransport: Implements IRPCServerTransport. An optional token
//     bucket (golang.org/x/time/rate) answers 429 once the configured request
//     rate is exceeded. At log level debug every request is logged.
//
//   - httpClientTransport: Implements IRPCClientTransport. Requests are spread
//     round-robin across the configured endpoints; network errors and 429
//     responses are retried up to RetryCount times.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	atomic operations for the round-robin counter.
package http
