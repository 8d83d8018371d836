package eviction

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("eviction")

const (
	// samples requested per overshooting entry when TTI/TTL filtering may
	// reject some of them
	overSampleFactor = 1.5
	// a pass with fewer samples than this share of the overshoot is logged
	shortfallRatio = 0.3
	// "can't evict" progress is logged every this many rejected samples
	cantEvictLogEvery = 1000
)

// Manager performs server side eviction of evictable maps. A periodic run
// samples every map that holds more entries than its target maximum and
// hands the samples to a Sink; applying a context (Evict) removes the
// eligible samples and commits the map.
//
// Thread-safety: all methods are safe for concurrent use. At most one pass
// runs per object id at a time.
type Manager struct {
	objects ObjectManager
	store   ManagedObjectStore
	clients ClientStateManager
	txns    TransactionProvider
	cfg     Config
	stats   *Stats

	sink     Sink
	evicting *xsync.MapOf[ObjectID, struct{}]

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a stopped evictor. stats may be nil.
func NewManager(objects ObjectManager, store ManagedObjectStore, clients ClientStateManager,
	txns TransactionProvider, cfg Config, stats *Stats) *Manager {
	if cfg.SleepInterval <= 0 {
		cfg.SleepInterval = DefaultSleepInterval
	}
	return &Manager{
		objects:  objects,
		store:    store,
		clients:  clients,
		txns:     txns,
		cfg:      cfg,
		stats:    stats,
		evicting: xsync.NewMapOf[ObjectID, struct{}](),
	}
}

// SetSink sets the stage that eviction contexts are submitted to. Without a
// sink, contexts are applied inline by the caller of DoEvictionOn.
func (m *Manager) SetSink(sink Sink) {
	m.sink = sink
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Start launches the periodic evictor if it is enabled and not running yet
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.PeriodicEnabled && !m.started {
		m.started = true
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.wg.Add(1)
		go m.periodic(ctx)
		Logger.Infof("evictor will run every %s", m.cfg.SleepInterval)
	}
	Logger.Infof("evictor logging enabled: %t", m.cfg.LoggingEnabled)
	Logger.Infof("periodic eviction enabled: %t", m.cfg.PeriodicEnabled)
	Logger.Infof("per element tti/ttl enabled: %t", m.cfg.ElementTTITTLEnabled)
}

// Stop ends the periodic evictor and waits for a running pass to finish
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	Logger.Infof("evictor stopped")
}

func (m *Manager) periodic(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SleepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunEvictor()
		}
	}
}

// --------------------------------------------------------------------------
// Sampling
// --------------------------------------------------------------------------

// RunEvictor runs one pass over every evictable object. Objects faulted into
// a connected client are never sampled.
func (m *Manager) RunEvictor() {
	m.stats.run()
	m.logf("started")

	evictable := m.store.AllEvictableObjectIDs()
	m.logf("number of evictable objects: %d", evictable.Len())

	faulted := NewObjectIDSet()
	m.clients.AddAllReferencedIDsTo(faulted)
	m.logf("number of objects faulted into clients: %d", faulted.Len())

	for _, oid := range evictable.Sorted() {
		m.DoEvictionOn(oid, faulted)
	}
	m.logf("ended")
}

// DoEvictionOn samples one map. It returns false without doing anything if
// a pass on oid is already in flight; the next periodic run revisits it.
func (m *Manager) DoEvictionOn(oid ObjectID, faulted ObjectIDSet) bool {
	if _, inFlight := m.evicting.LoadOrStore(oid, struct{}{}); inFlight {
		Logger.Infof("ignoring eviction request for %s, already in progress", oid)
		m.stats.skip()
		return false
	}
	defer m.evicting.Delete(oid)

	ctx, ok := m.sample(oid, faulted)
	if !ok {
		return true
	}
	if m.sink == nil {
		m.Evict(ctx)
	} else {
		m.sink.Add(ctx)
	}
	return true
}

// IsEvicting reports whether a pass on oid is in flight
func (m *Manager) IsEvicting(oid ObjectID) bool {
	_, ok := m.evicting.Load(oid)
	return ok
}

// sample checks the map out read-only and takes the samples for one
// context. ok is false if there is nothing to evict.
func (m *Manager) sample(oid ObjectID, faulted ObjectIDSet) (ctx Context, ok bool) {
	mo := m.objects.GetObjectByIDOrNull(oid)
	if mo == nil {
		return Context{}, false
	}
	defer m.objects.ReleaseReadOnly(mo)

	ev := evictableMapFrom(mo)
	target := ev.MaxTotalCount()
	size := ev.Size()
	if target <= 0 || size <= target {
		return Context{}, false
	}
	overshoot := size - target
	m.logf("trying to evict %s overshoot: %d current size: %d target max: %d", oid, overshoot, size, target)

	tti := ev.TTISeconds()
	ttl := ev.TTLSeconds()
	requested := overshoot
	if m.interestedInTTIOrTTL(tti, ttl) {
		requested = int(float64(overshoot) * overSampleFactor)
	}
	samples := ev.RandomSamples(requested, faulted)
	m.stats.pass(overshoot, len(samples))

	if float64(len(samples)) < float64(overshoot)*shortfallRatio || m.cfg.LoggingEnabled {
		Logger.Infof("got %d random samples to evict from %s (requested %d, overshoot %d)",
			len(samples), oid, requested, overshoot)
	}
	if len(samples) == 0 {
		return Context{}, false
	}

	return Context{
		ObjectID:            oid,
		TargetMaxTotalCount: target,
		TTISeconds:          tti,
		TTLSeconds:          ttl,
		Samples:             samples,
		Overshoot:           overshoot,
	}, true
}

// --------------------------------------------------------------------------
// Eviction
// --------------------------------------------------------------------------

// Evict applies one context: at most Overshoot eligible samples are removed
// from the map, which is then committed. It returns the number of removed
// entries.
func (m *Manager) Evict(ctx Context) int {
	candidates := make(map[string]any, min(ctx.Overshoot, len(ctx.Samples)))
	cantEvict := 0

	for _, key := range slices.Sorted(maps.Keys(ctx.Samples)) {
		if len(candidates) >= ctx.Overshoot {
			break
		}
		value := ctx.Samples[key]
		if m.canEvict(value, ctx.TTISeconds, ctx.TTLSeconds) {
			candidates[key] = value
			continue
		}
		cantEvict++
		if cantEvict%cantEvictLogEvery == 0 {
			m.logf("%s: can't evict %d so far, candidates: %d samples: %d",
				ctx.ObjectID, cantEvict, len(candidates), len(ctx.Samples))
		}
	}

	evicted := m.evictFrom(ctx.ObjectID, candidates)
	m.stats.evict(evicted, cantEvict)
	return evicted
}

func (m *Manager) evictFrom(oid ObjectID, candidates map[string]any) int {
	m.logf("evicting %s candidates: %d", oid, len(candidates))

	mo := m.objects.GetObjectByIDOrNull(oid)
	if mo == nil {
		return 0
	}
	evicted := func() int {
		defer m.releaseAndCommit(mo)
		return evictableMapFrom(mo).Evict(candidates)
	}()

	m.logf("evicted %d from %s", evicted, oid)
	return evicted
}

func (m *Manager) releaseAndCommit(mo ManagedObject) {
	txn := m.txns.NewTransaction()
	if err := m.objects.ReleaseAndCommit(txn, mo); err != nil {
		Logger.Errorf("commit after eviction on %s failed: %v", mo.ID(), err)
	}
}

// canEvict checks a single sample. Plain values are always eligible; a
// reference to an entry object is decided by the entry, and a reference to
// an object that no longer exists is not evicted.
func (m *Manager) canEvict(value any, tti, ttl int) bool {
	oid, ok := value.(ObjectID)
	if !ok || !m.interestedInTTIOrTTL(tti, ttl) {
		return true
	}
	mo := m.objects.GetObjectByIDOrNull(oid)
	if mo == nil {
		return false
	}
	defer m.objects.ReleaseReadOnly(mo)

	if entry, ok := mo.State().(EvictableEntry); ok {
		return entry.CanEvict(tti, ttl)
	}
	return true
}

func (m *Manager) interestedInTTIOrTTL(tti, ttl int) bool {
	return tti > 0 || ttl > 0 || m.cfg.ElementTTITTLEnabled
}

func evictableMapFrom(mo ManagedObject) EvictableMap {
	ev, ok := mo.State().(EvictableMap)
	if !ok {
		panic(fmt.Sprintf("object %s is not an evictable map: %T", mo.ID(), mo.State()))
	}
	return ev
}

func (m *Manager) logf(format string, args ...any) {
	if m.cfg.LoggingEnabled {
		Logger.Infof("server map eviction: "+format, args...)
	}
}

// --------------------------------------------------------------------------
// Diagnostics
// --------------------------------------------------------------------------

func (m *Manager) String() string {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()

	var ids []string
	m.evicting.Range(func(id ObjectID, _ struct{}) bool {
		ids = append(ids, id.String())
		return true
	})
	slices.Sort(ids)
	return fmt.Sprintf("eviction.Manager{started=%t evicting=[%s]}", started, strings.Join(ids, " "))
}
