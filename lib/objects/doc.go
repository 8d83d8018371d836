// Package objects is the in-memory object layer behind the evictor: a table
// of managed objects with exclusive checkout, evictable maps (ServerMap)
// whose values reference entry objects (EntryState), and the per-client
// reference sets that protect faulted-in entries from eviction.
package objects
