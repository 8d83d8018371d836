package server

import (
	"bytes"
	"testing"
	"time"

	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/ValentinKolb/dSO/rpc/serializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vmThread = ^uint64(0)

func TestLockAwardTravelsWithResponse(t *testing.T) {
	s := newTestServer(t, false)

	resp := s.lock(t, common.NewLockRequest("L", "a", 1, "write"))
	require.Empty(t, resp.Err)
	assert.Equal(t, common.MsgTLCKLock, resp.MsgType)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, common.LockEvent{Type: "AWARD", LockID: "L", ThreadID: 1, Level: "WRITE"}, resp.Events[0])

	// b queues behind a and learns about the award by polling
	resp = s.lock(t, common.NewLockRequest("L", "b", 1, "write"))
	require.Empty(t, resp.Err)
	assert.Empty(t, resp.Events)

	resp = s.lock(t, common.NewUnlockRequest("L", "a", 1))
	require.Empty(t, resp.Err)
	assert.Empty(t, resp.Events, "b's award is not delivered to a")

	resp = s.lock(t, common.NewPollRequest("b"))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "AWARD", resp.Events[0].Type)

	// drained
	assert.Empty(t, s.lock(t, common.NewPollRequest("b")).Events)
}

func TestLockRequestErrors(t *testing.T) {
	s := newTestServer(t, false)

	resp := s.lock(t, common.NewLockRequest("L", "", 1, "write"))
	assert.Equal(t, common.MsgTError, resp.MsgType)

	resp = s.lock(t, common.NewLockRequest("", "a", 1, "write"))
	assert.Contains(t, resp.Err, "lock id is required")

	resp = s.lock(t, common.NewLockRequest("L", "a", 1, "exclusive"))
	assert.Contains(t, resp.Err, "invalid lock level")

	resp = s.lock(t, common.NewUnlockRequest("L", "a", 1))
	assert.Contains(t, resp.Err, "LockError")

	resp = s.lock(t, common.NewMapSizeRequest(1))
	assert.Equal(t, common.MsgTError, resp.MsgType)

	resp = s.call(t, "nope", common.NewPollRequest("a"))
	assert.Contains(t, resp.Err, "not found")

	var out common.Message
	require.NoError(t, s.serializer.Deserialize(s.transport.handler(ServiceLocks, []byte("{")), &out))
	assert.Contains(t, out.Err, "failed to deserialize")
}

func TestTryLockTimeoutIsDeliveredByPoll(t *testing.T) {
	s := newTestServer(t, false)

	require.Len(t, s.lock(t, common.NewLockRequest("L", "a", 1, "write")).Events, 1)
	resp := s.lock(t, common.NewTryLockRequest("L", "b", 1, "write", 20))
	require.Empty(t, resp.Err)

	require.Eventually(t, func() bool {
		resp, err := s.tryCall(ServiceLocks, common.NewPollRequest("b"))
		return err == nil && len(resp.Events) == 1 && resp.Events[0].Type == "REJECTED"
	}, time.Second, 5*time.Millisecond)
}

func TestWaitNotifyAndQuery(t *testing.T) {
	s := newTestServer(t, false)

	s.lock(t, common.NewLockRequest("L", "a", 1, "write"))
	require.Empty(t, s.lock(t, common.NewWaitRequest("L", "a", 1, 0)).Err)
	s.lock(t, common.NewLockRequest("L", "b", 2, "write"))
	s.lock(t, common.NewPollRequest("b"))

	resp := s.lock(t, common.NewNotifyRequest("L", "b", 2, true))
	require.Empty(t, resp.Err)
	require.Len(t, resp.Contexts, 1)
	assert.Equal(t, "a", resp.Contexts[0].ClientID)

	resp = s.lock(t, common.NewQueryRequest("L", "b", 2))
	require.Len(t, resp.Events, 1)
	query := resp.Events[0]
	assert.Equal(t, "QUERY_RESULT", query.Type)
	assert.Equal(t, 1, query.Pending)
	require.NotEmpty(t, query.Contexts)
	assert.Equal(t, "HOLDER_WRITE", query.Contexts[0].State)
}

func TestGreedyRecallOverRPC(t *testing.T) {
	s := newTestServer(t, true)

	resp := s.lock(t, common.NewLockRequest("L", "a", 1, "write"))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, vmThread, resp.Events[0].ThreadID)

	s.lock(t, common.NewLockRequest("L", "b", 1, "write"))
	recall := s.lock(t, common.NewPollRequest("a")).Events
	require.Len(t, recall, 1)
	assert.Equal(t, "RECALL", recall[0].Type)

	resp = s.lock(t, common.NewRecallCommitRequest("L", "a", nil))
	require.Empty(t, resp.Err)

	award := s.lock(t, common.NewPollRequest("b")).Events
	require.Len(t, award, 1)
	assert.Equal(t, "AWARD", award[0].Type)

	// contexts with a bad state are rejected before they reach the lock
	resp = s.lock(t, common.NewRecallCommitRequest("L", "b", []common.LockContext{{ThreadID: 1, State: "OWNER"}}))
	assert.Contains(t, resp.Err, "invalid lock state")
}

func TestReestablishAndDisconnect(t *testing.T) {
	s := newTestServer(t, false)

	resp := s.lock(t, common.NewReestablishRequest("a", []common.LockContext{
		{LockID: "L1", ThreadID: 1, State: "HOLDER_WRITE"},
		{LockID: "L2", ThreadID: 1, State: "HOLDER_READ"},
	}))
	require.Empty(t, resp.Err)
	assert.ElementsMatch(t, []string{"L1", "L2"}, lockIDs(s))

	mapID := s.maps(t, common.NewMapCreateRequest(0, 0, 0)).MapID
	s.maps(t, common.NewMapPutRequest(mapID, "k", []byte("v"), 0, 0, false))
	s.maps(t, common.NewMapGetRequest(mapID, "k", "a"))

	resp = s.lock(t, common.NewDisconnectRequest("a"))
	assert.Equal(t, common.MsgTDisconnect, resp.MsgType)
	assert.Equal(t, 3, resp.Count, "two lock contexts and one faulted entry")
	assert.Empty(t, lockIDs(s))
}

func TestMapOperationsOverRPC(t *testing.T) {
	s := newTestServer(t, false)

	mapID := s.maps(t, common.NewMapCreateRequest(2, 0, 0)).MapID
	require.NotZero(t, mapID)

	put := s.maps(t, common.NewMapPutRequest(mapID, "a", []byte("1"), 0, 0, false))
	require.Empty(t, put.Err)
	assert.NotZero(t, put.Ref)
	inline := s.maps(t, common.NewMapPutRequest(mapID, "b", []byte("2"), 0, 0, true))
	require.Empty(t, inline.Err)
	assert.Zero(t, inline.Ref)
	// only the inline flag selects inline storage
	flagged := common.NewMapPutRequest(mapID, "b", []byte("2"), 0, 0, false)
	flagged.Ok = true
	assert.NotZero(t, s.maps(t, flagged).Ref)

	get := s.maps(t, common.NewMapGetRequest(mapID, "a", ""))
	assert.True(t, get.Ok)
	assert.Equal(t, []byte("1"), get.Value)
	assert.Equal(t, put.Ref, get.Ref)

	assert.False(t, s.maps(t, common.NewMapGetRequest(mapID, "zzz", "")).Ok)
	assert.Equal(t, 2, s.maps(t, common.NewMapSizeRequest(mapID)).Count)
	assert.True(t, s.maps(t, common.NewMapRemoveRequest(mapID, "b")).Ok)
	assert.False(t, s.maps(t, common.NewMapRemoveRequest(mapID, "b")).Ok)

	assert.Contains(t, s.maps(t, common.NewMapSizeRequest(9999)).Err, "not found")
	assert.Equal(t, common.MsgTError, s.maps(t, common.NewMapCreateRequest(-1, 0, 0)).MsgType)
	assert.Equal(t, common.MsgTError, s.maps(t, common.NewPollRequest("a")).MsgType)

	assert.True(t, s.maps(t, common.NewMapDeleteRequest(mapID)).Ok)
	assert.False(t, s.maps(t, common.NewMapDeleteRequest(mapID)).Ok)
}

func TestMapEvictSparesFaultedEntries(t *testing.T) {
	s := newTestServer(t, false)

	mapID := s.maps(t, common.NewMapCreateRequest(1, 0, 0)).MapID
	for _, k := range []string{"a", "b", "c", "d"} {
		s.maps(t, common.NewMapPutRequest(mapID, k, []byte(k), 0, 0, false))
	}
	held := s.maps(t, common.NewMapGetRequest(mapID, "a", "client-1"))
	require.True(t, held.Ok)

	assert.True(t, s.maps(t, common.NewMapEvictRequest(mapID)).Ok)
	require.Eventually(t, func() bool {
		resp, err := s.tryCall(ServiceMaps, common.NewMapSizeRequest(mapID))
		return err == nil && resp.Count == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, s.maps(t, common.NewMapGetRequest(mapID, "a", "")).Ok)

	// once released, the entry can go
	rel := s.maps(t, common.NewMapReleaseRequest("client-1", []uint64{held.Ref}))
	assert.Equal(t, 1, rel.Count)
	assert.Contains(t, s.maps(t, common.NewMapReleaseRequest("", nil)).Err, "client id")
}

func TestMapEvictRejectsEntryID(t *testing.T) {
	s := newTestServer(t, false)

	mapID := s.maps(t, common.NewMapCreateRequest(1, 0, 0)).MapID
	s.maps(t, common.NewMapPutRequest(mapID, "k", []byte("v"), 0, 0, false))
	held := s.maps(t, common.NewMapGetRequest(mapID, "k", "client-1"))
	require.True(t, held.Ok)
	require.NotZero(t, held.Ref)

	var resp *common.Message
	require.NotPanics(t, func() {
		resp = s.maps(t, common.NewMapEvictRequest(held.Ref))
	})
	assert.False(t, resp.Ok)
	assert.Contains(t, resp.Err, "not a map")
	assert.Contains(t, s.maps(t, common.NewMapEvictRequest(9999)).Err, "not found")

	// the entry and its map are untouched
	assert.Equal(t, 1, s.maps(t, common.NewMapSizeRequest(mapID)).Count)
	assert.True(t, s.maps(t, common.NewMapEvictRequest(mapID)).Ok)
}

func TestMetricsAreRegistered(t *testing.T) {
	s := newTestServer(t, true)
	s.lock(t, common.NewLockRequest("L", "a", 1, "read"))

	require.NotNil(t, s.transport.metrics)
	var buf bytes.Buffer
	s.transport.metrics(&buf)
	out := buf.String()
	assert.Contains(t, out, "dso_lock_requests_total 1")
	assert.Contains(t, out, "dso_evictor_runs_total")
	assert.Contains(t, out, "go_goroutines")
}

func TestServeUntilShutdown(t *testing.T) {
	ft := newFakeTransport()
	s := NewRPCServer(common.ServerConfig{LogLevel: "info"}, ft, serializer.NewGOBSerializer())

	done := make(chan error)
	go func() { done <- s.Serve() }()
	<-ft.listened

	require.NoError(t, s.Shutdown())
	require.NoError(t, <-done)
}

func lockIDs(s *testServer) []string {
	var out []string
	for _, id := range s.locks.Locks() {
		out = append(out, string(id))
	}
	return out
}
