// Package cmd implements the command-line interface of the dSO server. It
// provides a hierarchical command structure with operations for running the
// server and talking to it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the dSO server
//   - lock: Commands for lock operations (hold, try, query)
//   - maps: Commands for the evictable server maps and a load generator
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dso -help for a list of all commands.
package cmd
