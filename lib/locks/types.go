package locks

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Identifiers
// --------------------------------------------------------------------------

// LockID names a distributed lock
type LockID string

// ClientID identifies a remote client connection
type ClientID string

// ThreadID identifies the logical thread (monitor owner) within one client
type ThreadID uint64

// VMThreadID is the thread id of a greedy lease. A greedy lease belongs to a
// whole client, not to one of its threads.
const VMThreadID ThreadID = math.MaxUint64

// String returns the thread id, or "vm" for the greedy lease sentinel
func (t ThreadID) String() string {
	if t == VMThreadID {
		return "vm"
	}
	return fmt.Sprintf("%d", uint64(t))
}

// --------------------------------------------------------------------------
// Lock levels and context states
// --------------------------------------------------------------------------

// Level is the level a lock is requested or held at
type Level uint8

const (
	LevelNone Level = iota
	LevelRead
	LevelWrite
)

// String returns the string representation of a Level
func (l Level) String() string {
	switch l {
	case LevelRead:
		return "READ"
	case LevelWrite:
		return "WRITE"
	default:
		return "NONE"
	}
}

// ParseLevel converts "read" or "write" into a Level
func ParseLevel(s string) (Level, error) {
	switch s {
	case "read", "READ":
		return LevelRead, nil
	case "write", "WRITE":
		return LevelWrite, nil
	default:
		return LevelNone, fmt.Errorf("invalid lock level %q (expected read or write)", s)
	}
}

// ContextType tags the relationship of a (client, thread) pair to a lock
type ContextType uint8

const (
	TypeHolder ContextType = iota + 1
	TypeGreedyHolder
	TypePending
	TypeTryPending
	TypeWaiter
)

// String returns the string representation of a ContextType
func (t ContextType) String() string {
	switch t {
	case TypeHolder:
		return "HOLDER"
	case TypeGreedyHolder:
		return "GREEDY_HOLDER"
	case TypePending:
		return "PENDING"
	case TypeTryPending:
		return "TRY_PENDING"
	case TypeWaiter:
		return "WAITER"
	default:
		return "UNKNOWN"
	}
}

// State is the full state of a lock context: its type plus its level
type State struct {
	Type  ContextType
	Level Level
}

// Frequently used states
var (
	StateHolderRead        = State{TypeHolder, LevelRead}
	StateHolderWrite       = State{TypeHolder, LevelWrite}
	StateGreedyHolderRead  = State{TypeGreedyHolder, LevelRead}
	StateGreedyHolderWrite = State{TypeGreedyHolder, LevelWrite}
	StatePendingRead       = State{TypePending, LevelRead}
	StatePendingWrite      = State{TypePending, LevelWrite}
	StateWaiter            = State{TypeWaiter, LevelWrite}
)

func (s State) String() string {
	return s.Type.String() + "_" + s.Level.String()
}

// ParseState is the inverse of State.String ("GREEDY_HOLDER_READ" etc.)
func ParseState(s string) (State, error) {
	i := strings.LastIndexByte(s, '_')
	if i <= 0 {
		return State{}, fmt.Errorf("invalid lock state %q", s)
	}
	level, err := ParseLevel(s[i+1:])
	if err != nil {
		return State{}, fmt.Errorf("invalid lock state %q: %w", s, err)
	}
	for t := TypeHolder; t <= TypeWaiter; t++ {
		if t.String() == s[:i] {
			return State{Type: t, Level: level}, nil
		}
	}
	return State{}, fmt.Errorf("invalid lock state %q: unknown context type", s)
}

// IsHolder is true for normal and greedy holders
func (s State) IsHolder() bool {
	return s.Type == TypeHolder || s.Type == TypeGreedyHolder
}

// IsPending is true for pending and try-pending requests
func (s State) IsPending() bool {
	return s.Type == TypePending || s.Type == TypeTryPending
}

// NotifyAction selects how many waiters a notify wakes up
type NotifyAction uint8

const (
	NotifyOne NotifyAction = iota
	NotifyAll
)

func (a NotifyAction) String() string {
	if a == NotifyAll {
		return "ALL"
	}
	return "ONE"
}

// ClientContext is the exchange form of one lock context. It is used for
// query results, notifications, recall commits and reestablishment.
type ClientContext struct {
	LockID   LockID
	ClientID ClientID
	ThreadID ThreadID
	State    State
	Timeout  time.Duration // only meaningful for TRY_PENDING and WAITER
}

func (c ClientContext) String() string {
	return fmt.Sprintf("[%s %s/%s %s timeout=%s]", c.LockID, c.ClientID, c.ThreadID, c.State, c.Timeout)
}

// --------------------------------------------------------------------------
// Responses
// --------------------------------------------------------------------------

// ResponseType is the kind of event a lock emits to a client
type ResponseType uint8

const (
	ResponseAward ResponseType = iota + 1
	ResponseRejected
	ResponseRecall
	ResponseWaitTimeout
	ResponseQueryResult
)

func (t ResponseType) String() string {
	switch t {
	case ResponseAward:
		return "AWARD"
	case ResponseRejected:
		return "REJECTED"
	case ResponseRecall:
		return "RECALL"
	case ResponseWaitTimeout:
		return "WAIT_TIMEOUT"
	case ResponseQueryResult:
		return "QUERY_RESULT"
	default:
		return "UNKNOWN"
	}
}

// Response is an outbound event addressed to (ClientID, ThreadID)
type Response struct {
	Type     ResponseType
	LockID   LockID
	ClientID ClientID
	ThreadID ThreadID
	Level    Level

	// set for ResponseQueryResult only
	Contexts     []ClientContext
	PendingCount int
}

func (r Response) String() string {
	return fmt.Sprintf("%s(%s) lock=%s client=%s thread=%s", r.Type, r.Level, r.LockID, r.ClientID, r.ThreadID)
}
