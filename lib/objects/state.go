package objects

import (
	"fmt"
	mrand "math/rand/v2"
	"time"

	"github.com/ValentinKolb/dSO/lib/eviction"
	"github.com/ValentinKolb/dSO/lib/util"
)

// --------------------------------------------------------------------------
// ServerMap
// --------------------------------------------------------------------------

// ServerMap is the state of an evictable map object. Values are either an
// eviction.ObjectID referencing an EntryState object or an inline string.
//
// Thread-safety: not safe for concurrent use, the owning object must be
// checked out.
type ServerMap struct {
	maxTotalCount int
	tti           int
	ttl           int

	keys   []string       // dense key list for random sampling
	index  map[string]int // key -> position in keys
	values map[string]any

	// entry objects that are no longer referenced, collected on commit
	garbage []eviction.ObjectID
	rnd     *mrand.Rand
}

// NewServerMap creates an empty map. maxTotalCount <= 0 means unbounded.
func NewServerMap(maxTotalCount, ttiSeconds, ttlSeconds int) *ServerMap {
	return &ServerMap{
		maxTotalCount: maxTotalCount,
		tti:           ttiSeconds,
		ttl:           ttlSeconds,
		index:         make(map[string]int),
		values:        make(map[string]any),
		rnd:           util.NewRand(),
	}
}

func (m *ServerMap) MaxTotalCount() int { return m.maxTotalCount }
func (m *ServerMap) Size() int          { return len(m.keys) }
func (m *ServerMap) TTISeconds() int    { return m.tti }
func (m *ServerMap) TTLSeconds() int    { return m.ttl }

// Put stores value under key and returns the previous value
func (m *ServerMap) Put(key string, value any) (any, bool) {
	checkValue(value)
	old, existed := m.values[key]
	if existed {
		m.collect(old)
	} else {
		m.index[key] = len(m.keys)
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return old, existed
}

func (m *ServerMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Remove deletes key and returns its value
func (m *ServerMap) Remove(key string) (any, bool) {
	v, ok := m.values[key]
	if !ok {
		return nil, false
	}
	m.removeKey(key)
	m.collect(v)
	return v, true
}

// Keys returns the keys in sampling order
func (m *ServerMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// RandomSamples walks the keys from a random offset and returns up to count
// entries whose value does not reference an object in ignore.
func (m *ServerMap) RandomSamples(count int, ignore eviction.ObjectIDSet) map[string]any {
	n := len(m.keys)
	samples := make(map[string]any, min(max(count, 0), n))
	if count <= 0 || n == 0 {
		return samples
	}

	start := m.rnd.IntN(n)
	for i := 0; i < n && len(samples) < count; i++ {
		key := m.keys[(start+i)%n]
		value := m.values[key]
		if ref, ok := value.(eviction.ObjectID); ok && ignore.Contains(ref) {
			continue
		}
		samples[key] = value
	}
	return samples
}

// Evict removes every candidate whose key still maps to the sampled value.
// Keys that were overwritten or removed since sampling are left alone.
func (m *ServerMap) Evict(candidates map[string]any) int {
	evicted := 0
	for key, sampled := range candidates {
		current, ok := m.values[key]
		if !ok || current != sampled {
			continue
		}
		m.removeKey(key)
		m.collect(current)
		evicted++
	}
	return evicted
}

func (m *ServerMap) removeKey(key string) {
	i := m.index[key]
	last := len(m.keys) - 1
	if i != last {
		moved := m.keys[last]
		m.keys[i] = moved
		m.index[moved] = i
	}
	m.keys = m.keys[:last]
	delete(m.index, key)
	delete(m.values, key)
}

func (m *ServerMap) collect(v any) {
	if ref, ok := v.(eviction.ObjectID); ok {
		m.garbage = append(m.garbage, ref)
	}
}

func (m *ServerMap) takeGarbage() []eviction.ObjectID {
	g := m.garbage
	m.garbage = nil
	return g
}

// references returns every entry object the map points to
func (m *ServerMap) references() []eviction.ObjectID {
	var refs []eviction.ObjectID
	for _, v := range m.values {
		if ref, ok := v.(eviction.ObjectID); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// values must stay comparable, Evict compares them with ==
func checkValue(v any) {
	switch v.(type) {
	case eviction.ObjectID, string:
	default:
		panic(fmt.Sprintf("unsupported map value type %T", v))
	}
}

// --------------------------------------------------------------------------
// EntryState
// --------------------------------------------------------------------------

// EntryState is the state of a map entry object. Per element TTI/TTL, when
// set, take precedence over the map's settings.
type EntryState struct {
	value      string
	created    time.Time
	lastAccess time.Time
	tti        int
	ttl        int
	clock      func() time.Time
}

func newEntryState(value string, ttiSeconds, ttlSeconds int, clock func() time.Time) *EntryState {
	now := clock()
	return &EntryState{
		value:      value,
		created:    now,
		lastAccess: now,
		tti:        ttiSeconds,
		ttl:        ttlSeconds,
		clock:      clock,
	}
}

func (e *EntryState) Value() string { return e.value }

// Touch records an access for TTI
func (e *EntryState) Touch() { e.lastAccess = e.clock() }

// Expired reports whether the entry outlived its idle or live time. An
// entry without any TTI or TTL never expires.
func (e *EntryState) Expired(ttiSeconds, ttlSeconds int) bool {
	tti, ttl := e.effective(ttiSeconds, ttlSeconds)
	now := e.clock()
	if tti > 0 && now.Sub(e.lastAccess) >= time.Duration(tti)*time.Second {
		return true
	}
	return ttl > 0 && now.Sub(e.created) >= time.Duration(ttl)*time.Second
}

// CanEvict implements eviction.EvictableEntry. Eternal entries can always
// be evicted under capacity pressure, others only once they expired.
func (e *EntryState) CanEvict(ttiSeconds, ttlSeconds int) bool {
	tti, ttl := e.effective(ttiSeconds, ttlSeconds)
	if tti <= 0 && ttl <= 0 {
		return true
	}
	return e.Expired(ttiSeconds, ttlSeconds)
}

func (e *EntryState) effective(ttiSeconds, ttlSeconds int) (int, int) {
	if e.tti > 0 {
		ttiSeconds = e.tti
	}
	if e.ttl > 0 {
		ttlSeconds = e.ttl
	}
	return ttiSeconds, ttlSeconds
}
