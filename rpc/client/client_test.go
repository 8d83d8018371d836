package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIDsAreUnique(t *testing.T) {
	handler := startServer(t, false)
	a, b := newLocks(t, handler), newLocks(t, handler)
	assert.NotEqual(t, a.ClientID(), b.ClientID())
	assert.Len(t, a.ClientID(), 36)
}

func TestLockAndTryLock(t *testing.T) {
	handler := startServer(t, false)
	a, b := newLocks(t, handler), newLocks(t, handler)
	ctx := context.Background()

	require.NoError(t, a.Lock(ctx, "L", 1, "write"))

	ok, err := b.TryLock(ctx, "L", 1, "write", 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Unlock("L", 1))
	ok, err = b.TryLock(ctx, "L", 1, "write", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBlockedLockIsAwardedOnUnlock(t *testing.T) {
	handler := startServer(t, false)
	a, b := newLocks(t, handler), newLocks(t, handler)
	ctx := context.Background()

	require.NoError(t, a.Lock(ctx, "L", 1, "write"))

	done := make(chan error)
	go func() { done <- b.Lock(ctx, "L", 7, "read") }()

	select {
	case <-done:
		t.Fatal("lock granted while held")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, a.Unlock("L", 1))
	require.NoError(t, <-done)
}

func TestLockHonorsContext(t *testing.T) {
	handler := startServer(t, false)
	a, b := newLocks(t, handler), newLocks(t, handler)

	require.NoError(t, a.Lock(context.Background(), "L", 1, "write"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Lock(ctx, "L", 1, "write")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWaitAndNotify(t *testing.T) {
	handler := startServer(t, false)
	a, b := newLocks(t, handler), newLocks(t, handler)
	ctx := context.Background()

	require.NoError(t, a.Lock(ctx, "L", 1, "write"))

	woken := make(chan bool)
	go func() {
		notified, err := a.Wait(ctx, "L", 1, 0)
		assert.NoError(t, err)
		woken <- notified
	}()

	// b gets the lock once a waits
	require.NoError(t, b.Lock(ctx, "L", 1, "write"))
	notified, err := b.Notify("L", 1, false)
	require.NoError(t, err)
	require.Len(t, notified, 1)
	assert.Equal(t, a.ClientID(), notified[0].ClientID)

	require.NoError(t, b.Unlock("L", 1))
	assert.True(t, <-woken)
}

func TestWaitTimeout(t *testing.T) {
	handler := startServer(t, false)
	a := newLocks(t, handler)
	ctx := context.Background()

	require.NoError(t, a.Lock(ctx, "L", 1, "write"))
	notified, err := a.Wait(ctx, "L", 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, notified)

	// the lock is held again
	require.NoError(t, a.Unlock("L", 1))
}

func TestQuery(t *testing.T) {
	handler := startServer(t, false)
	a, b := newLocks(t, handler), newLocks(t, handler)
	ctx := context.Background()

	require.NoError(t, a.Lock(ctx, "L", 1, "read"))
	require.NoError(t, b.Lock(ctx, "L", 1, "read"))

	result, err := a.Query(ctx, "L", 1)
	require.NoError(t, err)
	assert.Equal(t, "READ", result.Level)
	assert.Len(t, result.Contexts, 2)
	assert.Zero(t, result.Pending)
}

func TestGreedyLeaseAndRecall(t *testing.T) {
	handler := startServer(t, true)
	a, b := newLocks(t, handler), newLocks(t, handler)
	ctx := context.Background()

	require.NoError(t, a.Lock(ctx, "L", 1, "write"))
	// covered by the lease, no round trip needed
	require.NoError(t, a.Lock(ctx, "L", 2, "read"))

	done := make(chan error)
	go func() { done <- b.Lock(ctx, "L", 1, "write") }()

	require.Eventually(t, func() bool {
		events, err := a.Poll()
		if err != nil {
			return false
		}
		for _, ev := range events {
			if ev.Type == "RECALL" && ev.LockID == "L" {
				return true
			}
		}
		return false
	}, time.Second, 2*time.Millisecond)

	require.NoError(t, a.RecallCommit("L", nil))
	require.NoError(t, <-done)
}

func TestCloseReleasesLocks(t *testing.T) {
	handler := startServer(t, false)
	a, b := newLocks(t, handler), newLocks(t, handler)
	ctx := context.Background()

	require.NoError(t, a.Lock(ctx, "L", 1, "write"))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	require.NoError(t, b.Lock(ctx, "L", 1, "write"))
	assert.ErrorIs(t, a.Lock(ctx, "L", 1, "write"), ErrClosed)
}

func TestLockErrors(t *testing.T) {
	handler := startServer(t, false)
	a := newLocks(t, handler)

	assert.Error(t, a.Unlock("L", 1))
	assert.Error(t, a.Lock(context.Background(), "L", 1, "exclusive"))
	_, err := a.Notify("L", 1, true)
	assert.Error(t, err)
}

func TestMaps(t *testing.T) {
	handler := startServer(t, false)
	m := newMaps(t, handler)

	mapID, err := m.Create(1, 0, 0)
	require.NoError(t, err)

	ref, err := m.Put(mapID, "a", []byte("1"), 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.PutInline(mapID, "b", []byte("2")))
	_, err = m.Put(mapID, "c", []byte("3"), 0, 0)
	require.NoError(t, err)

	value, got, ok, err := m.Get(mapID, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), value)
	assert.Equal(t, ref, got)

	// a is faulted into m and survives eviction
	started, err := m.Evict(mapID)
	require.NoError(t, err)
	assert.True(t, started)
	require.Eventually(t, func() bool {
		size, err := m.Size(mapID)
		return err == nil && size == 1
	}, time.Second, 2*time.Millisecond)
	_, _, ok, _ = m.Get(mapID, "a")
	assert.True(t, ok)

	require.NoError(t, m.Release(ref))
	removed, err := m.Remove(mapID, "a")
	require.NoError(t, err)
	assert.True(t, removed)

	deleted, err := m.Delete(mapID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = m.Size(mapID)
	assert.Error(t, err)
	require.NoError(t, m.Close())
}
