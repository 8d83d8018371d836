// Package eviction implements server side eviction for evictable maps.
//
// A Manager periodically walks every evictable object. For a map that holds
// more entries than its target maximum it takes random samples (1.5 times
// the overshoot when TTI/TTL filtering is active, the overshoot otherwise),
// skipping entries that are faulted into a connected client, and submits an
// eviction Context to a Sink. Applying the context removes at most overshoot
// eligible samples and commits the map.
//
// The Manager never talks to storage directly. Managed objects are checked
// out through an ObjectManager, read-only for sampling and read-write for the
// final evict-and-commit step, and every checkout is released on all paths.
//
// Usage:
//
//	mgr := eviction.NewManager(objects, objects, clients, objects, eviction.DefaultConfig(), eviction.NewStats())
//	stage := eviction.NewStage(mgr.Evict)
//	mgr.SetSink(stage)
//	mgr.Start()
//	defer stage.Close()
//	defer mgr.Stop()
package eviction
