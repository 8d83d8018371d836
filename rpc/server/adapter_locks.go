package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dSO/lib/locks"
	"github.com/ValentinKolb/dSO/rpc/common"
)

// NewLockServerAdapter creates the adapter of the "locks" service. Every
// response carries the events queued for the requesting client.
func NewLockServerAdapter(mgr *locks.Manager, mail *Mailboxes) IRPCServerAdapter {
	return &lockServerAdapter{mgr: mgr, mail: mail}
}

type lockServerAdapter struct {
	mgr  *locks.Manager
	mail *Mailboxes
}

var errMissingLockID = errors.New("lock id is required")

func (adapter *lockServerAdapter) Handle(req *common.Message) (resp *common.Message) {
	if !req.MsgType.IsLockOp() {
		return common.NewErrorResponse(fmt.Sprintf("RPC LockAdapter - Unsupported message type: %s", req.MsgType))
	}
	if req.ClientID == "" {
		return common.NewErrorResponse("RPC LockAdapter - client id is required")
	}

	cid := locks.ClientID(req.ClientID)
	contexts, err := adapter.apply(req, cid)

	// events emitted by this request are already in the mailbox
	return common.NewLockResponse(req.MsgType, adapter.mail.Drain(cid), contextsToWire(contexts), err)
}

func (adapter *lockServerAdapter) apply(req *common.Message, cid locks.ClientID) ([]locks.ClientContext, error) {
	id := locks.LockID(req.LockID)
	tid := locks.ThreadID(req.ThreadID)
	timeout := time.Duration(req.Timeout) * time.Millisecond

	switch req.MsgType {
	case common.MsgTLCKPoll:
		return nil, nil
	case common.MsgTLCKReestablish:
		contexts, err := contextsFromWire(req.Contexts, req.LockID, req.ClientID)
		if err != nil {
			return nil, err
		}
		return nil, adapter.mgr.Reestablish(contexts)
	}

	if id == "" {
		return nil, errMissingLockID
	}

	switch req.MsgType {
	case common.MsgTLCKLock:
		level, err := locks.ParseLevel(req.Level)
		if err != nil {
			return nil, err
		}
		return nil, adapter.mgr.Lock(id, cid, tid, level)
	case common.MsgTLCKTryLock:
		level, err := locks.ParseLevel(req.Level)
		if err != nil {
			return nil, err
		}
		return nil, adapter.mgr.TryLock(id, cid, tid, level, timeout)
	case common.MsgTLCKUnlock:
		return nil, adapter.mgr.Unlock(id, cid, tid)
	case common.MsgTLCKWait:
		return nil, adapter.mgr.Wait(id, cid, tid, timeout)
	case common.MsgTLCKNotify:
		action := locks.NotifyOne
		if req.All {
			action = locks.NotifyAll
		}
		return adapter.mgr.Notify(id, cid, tid, action)
	case common.MsgTLCKInterrupt:
		adapter.mgr.Interrupt(id, cid, tid)
		return nil, nil
	case common.MsgTLCKQuery:
		adapter.mgr.Query(id, cid, tid)
		return nil, nil
	case common.MsgTLCKRecallCommit:
		contexts, err := contextsFromWire(req.Contexts, req.LockID, req.ClientID)
		if err != nil {
			return nil, err
		}
		return nil, adapter.mgr.RecallCommit(id, cid, contexts)
	default:
		return nil, fmt.Errorf("unsupported message type: %s", req.MsgType)
	}
}

func (adapter *lockServerAdapter) Disconnect(clientID string) int {
	cid := locks.ClientID(clientID)
	cleared := adapter.mgr.ClearStateForNode(cid)
	if dropped := adapter.mail.Remove(cid); dropped > 0 {
		Logger.Debugf("dropped %d undelivered events of client %s", dropped, cid)
	}
	return cleared
}
