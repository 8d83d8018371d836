package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Lock fields
	LockID   string        `json:"lock_id,omitempty"`    // Used for: all lock operations except poll and disconnect
	ClientID string        `json:"client_id,omitempty"`  // Used for: all lock operations, map-get, map-release, disconnect
	ThreadID uint64        `json:"thread_id,omitempty"`  // Used for: lock, trylock, unlock, wait, notify, interrupt, query
	Level    string        `json:"level,omitempty"`      // Used for: lock, trylock ("read" or "write")
	Timeout  int64         `json:"timeout_ms,omitempty"` // Used for: trylock, wait (milliseconds)
	All      bool          `json:"all,omitempty"`        // Used for: notify (wake every waiter)
	Contexts []LockContext `json:"contexts,omitempty"`   // Used for: reestablish, recall-commit (request), notify (response)
	Events   []LockEvent   `json:"events,omitempty"`     // Used for: every lock response, the drained mailbox of the client

	// Map fields
	MapID    uint64   `json:"map_id,omitempty"`    // Used for: all map operations
	Key      string   `json:"key,omitempty"`       // Used for: map-put, map-get, map-remove
	Value    []byte   `json:"value,omitempty"`     // Used for: map-put (request), map-get (response)
	MaxCount int      `json:"max_count,omitempty"` // Used for: map-create
	TTI      int      `json:"tti,omitempty"`       // Used for: map-create, map-put (seconds)
	TTL      int      `json:"ttl,omitempty"`       // Used for: map-create, map-put (seconds)
	Ref      uint64   `json:"ref,omitempty"`       // Used for: map-put, map-get (entry object id, 0 for inline values)
	Refs     []uint64 `json:"refs,omitempty"`      // Used for: map-release
	Inline   bool     `json:"inline,omitempty"`    // Used for: map-put (store the value without an entry object)

	// Response fields
	Count int    `json:"count,omitempty"` // Used for: map-size, map-release, disconnect responses
	Ok    bool   `json:"ok,omitempty"`    // Used for: map-get, map-remove, map-delete, map-evict responses
	Err   string `json:"err,omitempty"`   // Empty if no error, otherwise contains the error message
}

// LockContext is the wire form of one lock context
type LockContext struct {
	LockID   string `json:"lock_id"`
	ClientID string `json:"client_id"`
	ThreadID uint64 `json:"thread_id"`
	State    string `json:"state"`                // e.g. "HOLDER_WRITE", "GREEDY_HOLDER_READ"
	Timeout  int64  `json:"timeout_ms,omitempty"` // TRY_PENDING and WAITER only
}

// LockEvent is the wire form of one event a lock emitted to a client
type LockEvent struct {
	Type     string        `json:"type"` // AWARD, REJECTED, RECALL, WAIT_TIMEOUT, QUERY_RESULT
	LockID   string        `json:"lock_id"`
	ThreadID uint64        `json:"thread_id"`
	Level    string        `json:"level,omitempty"`
	Contexts []LockContext `json:"contexts,omitempty"` // QUERY_RESULT only
	Pending  int           `json:"pending,omitempty"`  // QUERY_RESULT only
}

// --------------------------------------------------------------------------
// Message Factory Functions (locks)
// --------------------------------------------------------------------------

// NewLockRequest creates a new blocking Lock request
func NewLockRequest(lockID, clientID string, threadID uint64, level string) *Message {
	return &Message{
		MsgType:  MsgTLCKLock,
		LockID:   lockID,
		ClientID: clientID,
		ThreadID: threadID,
		Level:    level,
	}
}

// NewTryLockRequest creates a new TryLock request. A zero timeout makes the
// request fail immediately if the lock is not free.
func NewTryLockRequest(lockID, clientID string, threadID uint64, level string, timeoutMillis int64) *Message {
	return &Message{
		MsgType:  MsgTLCKTryLock,
		LockID:   lockID,
		ClientID: clientID,
		ThreadID: threadID,
		Level:    level,
		Timeout:  timeoutMillis,
	}
}

// NewUnlockRequest creates a new Unlock request
func NewUnlockRequest(lockID, clientID string, threadID uint64) *Message {
	return &Message{
		MsgType:  MsgTLCKUnlock,
		LockID:   lockID,
		ClientID: clientID,
		ThreadID: threadID,
	}
}

// NewWaitRequest creates a new Wait request. A zero timeout waits forever.
func NewWaitRequest(lockID, clientID string, threadID uint64, timeoutMillis int64) *Message {
	return &Message{
		MsgType:  MsgTLCKWait,
		LockID:   lockID,
		ClientID: clientID,
		ThreadID: threadID,
		Timeout:  timeoutMillis,
	}
}

// NewNotifyRequest creates a new Notify request
func NewNotifyRequest(lockID, clientID string, threadID uint64, all bool) *Message {
	return &Message{
		MsgType:  MsgTLCKNotify,
		LockID:   lockID,
		ClientID: clientID,
		ThreadID: threadID,
		All:      all,
	}
}

// NewInterruptRequest creates a new Interrupt request
func NewInterruptRequest(lockID, clientID string, threadID uint64) *Message {
	return &Message{
		MsgType:  MsgTLCKInterrupt,
		LockID:   lockID,
		ClientID: clientID,
		ThreadID: threadID,
	}
}

// NewQueryRequest creates a new Query request
func NewQueryRequest(lockID, clientID string, threadID uint64) *Message {
	return &Message{
		MsgType:  MsgTLCKQuery,
		LockID:   lockID,
		ClientID: clientID,
		ThreadID: threadID,
	}
}

// NewReestablishRequest creates a new Reestablish request
func NewReestablishRequest(clientID string, contexts []LockContext) *Message {
	return &Message{
		MsgType:  MsgTLCKReestablish,
		ClientID: clientID,
		Contexts: contexts,
	}
}

// NewRecallCommitRequest creates a new RecallCommit request
func NewRecallCommitRequest(lockID, clientID string, contexts []LockContext) *Message {
	return &Message{
		MsgType:  MsgTLCKRecallCommit,
		LockID:   lockID,
		ClientID: clientID,
		Contexts: contexts,
	}
}

// NewPollRequest creates a new Poll request
func NewPollRequest(clientID string) *Message {
	return &Message{
		MsgType:  MsgTLCKPoll,
		ClientID: clientID,
	}
}

// NewLockResponse creates a response to any lock operation. It carries the
// events that were queued for the client.
func NewLockResponse(msgType MessageType, events []LockEvent, contexts []LockContext, err error) *Message {
	msg := &Message{
		MsgType:  msgType,
		Events:   events,
		Contexts: contexts,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewDisconnectRequest creates a new Disconnect request
func NewDisconnectRequest(clientID string) *Message {
	return &Message{
		MsgType:  MsgTDisconnect,
		ClientID: clientID,
	}
}

// NewDisconnectResponse creates a new Disconnect response
func NewDisconnectResponse(cleared int) *Message {
	return &Message{
		MsgType: MsgTDisconnect,
		Count:   cleared,
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions (maps)
// --------------------------------------------------------------------------

// NewMapCreateRequest creates a new MapCreate request
func NewMapCreateRequest(maxCount, tti, ttl int) *Message {
	return &Message{
		MsgType:  MsgTMapCreate,
		MaxCount: maxCount,
		TTI:      tti,
		TTL:      ttl,
	}
}

// NewMapCreateResponse creates a new MapCreate response
func NewMapCreateResponse(mapID uint64) *Message {
	return &Message{
		MsgType: MsgTMapCreate,
		MapID:   mapID,
	}
}

// NewMapPutRequest creates a new MapPut request. Inline values are stored
// directly in the map instead of in an entry object.
func NewMapPutRequest(mapID uint64, key string, value []byte, tti, ttl int, inline bool) *Message {
	return &Message{
		MsgType: MsgTMapPut,
		MapID:   mapID,
		Key:     key,
		Value:   value,
		TTI:     tti,
		TTL:     ttl,
		Inline:  inline,
	}
}

// NewMapPutResponse creates a new MapPut response
func NewMapPutResponse(ref uint64, err error) *Message {
	msg := &Message{
		MsgType: MsgTMapPut,
		Ref:     ref,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewMapGetRequest creates a new MapGet request. If clientID is set, the
// entry object is faulted into that client and protected from eviction
// until it is released.
func NewMapGetRequest(mapID uint64, key, clientID string) *Message {
	return &Message{
		MsgType:  MsgTMapGet,
		MapID:    mapID,
		Key:      key,
		ClientID: clientID,
	}
}

// NewMapGetResponse creates a new MapGet response
func NewMapGetResponse(value []byte, ref uint64, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTMapGet,
		Value:   value,
		Ref:     ref,
		Ok:      ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewMapRemoveRequest creates a new MapRemove request
func NewMapRemoveRequest(mapID uint64, key string) *Message {
	return &Message{
		MsgType: MsgTMapRemove,
		MapID:   mapID,
		Key:     key,
	}
}

// NewMapSizeRequest creates a new MapSize request
func NewMapSizeRequest(mapID uint64) *Message {
	return &Message{
		MsgType: MsgTMapSize,
		MapID:   mapID,
	}
}

// NewMapEvictRequest creates a new MapEvict request. It runs one eviction
// pass on the map right away.
func NewMapEvictRequest(mapID uint64) *Message {
	return &Message{
		MsgType: MsgTMapEvict,
		MapID:   mapID,
	}
}

// NewMapReleaseRequest creates a new MapRelease request
func NewMapReleaseRequest(clientID string, refs []uint64) *Message {
	return &Message{
		MsgType:  MsgTMapRelease,
		ClientID: clientID,
		Refs:     refs,
	}
}

// NewMapDeleteRequest creates a new MapDelete request
func NewMapDeleteRequest(mapID uint64) *Message {
	return &Message{
		MsgType: MsgTMapDelete,
		MapID:   mapID,
	}
}

// NewMapResponse creates a generic map response (remove, size, evict,
// release, delete)
func NewMapResponse(msgType MessageType, count int, ok bool, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Count:   count,
		Ok:      ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var msgTypeNames = map[MessageType]string{
	MsgTSuccess:         "success",
	MsgTError:           "error",
	MsgTDisconnect:      "disconnect",
	MsgTLCKLock:         "lock",
	MsgTLCKTryLock:      "trylock",
	MsgTLCKUnlock:       "unlock",
	MsgTLCKWait:         "wait",
	MsgTLCKNotify:       "notify",
	MsgTLCKInterrupt:    "interrupt",
	MsgTLCKQuery:        "query",
	MsgTLCKReestablish:  "reestablish",
	MsgTLCKRecallCommit: "recall-commit",
	MsgTLCKPoll:         "poll",
	MsgTMapCreate:       "map-create",
	MsgTMapPut:          "map-put",
	MsgTMapGet:          "map-get",
	MsgTMapRemove:       "map-remove",
	MsgTMapSize:         "map-size",
	MsgTMapEvict:        "map-evict",
	MsgTMapRelease:      "map-release",
	MsgTMapDelete:       "map-delete",
}

var msgTypesByName = func() map[string]MessageType {
	m := make(map[string]MessageType, len(msgTypeNames))
	for t, name := range msgTypeNames {
		m[name] = t
	}
	return m
}()

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	msgType, ok := msgTypesByName[s]
	if !ok {
		return fmt.Errorf("unknown message type: %s", s)
	}
	*t = msgType
	return nil
}

// IsLockOp is true for message types served by the lock service
func (t MessageType) IsLockOp() bool {
	return t >= MsgTLCKLock && t <= MsgTLCKPoll
}

// IsMapOp is true for message types served by the map service
func (t MessageType) IsMapOp() bool {
	return t >= MsgTMapCreate && t <= MsgTMapDelete
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown    MessageType = iota
	MsgTSuccess                // Indicates a successful operation
	MsgTError                  // Indicates an error occurred
	MsgTDisconnect             // Drop all server side state of a client

	// Lock operations

	MsgTLCKLock         // Request a lock, the award arrives as an event
	MsgTLCKTryLock      // Request a lock with a timeout
	MsgTLCKUnlock       // Release a lock
	MsgTLCKWait         // Wait on a held write lock
	MsgTLCKNotify       // Wake one or all waiters
	MsgTLCKInterrupt    // Wake a specific waiter
	MsgTLCKQuery        // Snapshot the lock state
	MsgTLCKReestablish  // Replay client state after a server restart
	MsgTLCKRecallCommit // Hand a recalled greedy lease back
	MsgTLCKPoll         // Drain the event mailbox of a client

	// Map operations

	MsgTMapCreate  // Create an evictable map
	MsgTMapPut     // Put a key
	MsgTMapGet     // Get a key
	MsgTMapRemove  // Remove a key
	MsgTMapSize    // Number of keys
	MsgTMapEvict   // Run one eviction pass on a map
	MsgTMapRelease // Release entries faulted into a client
	MsgTMapDelete  // Delete a map and its entries
)
