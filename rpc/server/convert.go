package server

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dSO/lib/locks"
	"github.com/ValentinKolb/dSO/rpc/common"
)

// --------------------------------------------------------------------------
// Wire conversion of lock contexts and events
// --------------------------------------------------------------------------

func levelToWire(l locks.Level) string {
	if l == locks.LevelNone {
		return ""
	}
	return l.String()
}

func contextsToWire(contexts []locks.ClientContext) []common.LockContext {
	if len(contexts) == 0 {
		return nil
	}
	out := make([]common.LockContext, len(contexts))
	for i, c := range contexts {
		out[i] = common.LockContext{
			LockID:   string(c.LockID),
			ClientID: string(c.ClientID),
			ThreadID: uint64(c.ThreadID),
			State:    c.State.String(),
			Timeout:  c.Timeout.Milliseconds(),
		}
	}
	return out
}

// contextsFromWire converts wire contexts. Missing lock or client ids are
// filled in from the request.
func contextsFromWire(contexts []common.LockContext, lockID, clientID string) ([]locks.ClientContext, error) {
	out := make([]locks.ClientContext, len(contexts))
	for i, c := range contexts {
		state, err := locks.ParseState(c.State)
		if err != nil {
			return nil, fmt.Errorf("context %d: %w", i, err)
		}
		if c.LockID == "" {
			c.LockID = lockID
		}
		if c.ClientID == "" {
			c.ClientID = clientID
		}
		if c.LockID == "" || c.ClientID == "" {
			return nil, fmt.Errorf("context %d: lock id and client id are required", i)
		}
		out[i] = locks.ClientContext{
			LockID:   locks.LockID(c.LockID),
			ClientID: locks.ClientID(c.ClientID),
			ThreadID: locks.ThreadID(c.ThreadID),
			State:    state,
			Timeout:  time.Duration(c.Timeout) * time.Millisecond,
		}
	}
	return out, nil
}

func eventToWire(resp locks.Response) common.LockEvent {
	return common.LockEvent{
		Type:     resp.Type.String(),
		LockID:   string(resp.LockID),
		ThreadID: uint64(resp.ThreadID),
		Level:    levelToWire(resp.Level),
		Contexts: contextsToWire(resp.Contexts),
		Pending:  resp.PendingCount,
	}
}
