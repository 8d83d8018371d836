package server

import (
	"fmt"

	"github.com/ValentinKolb/dSO/lib/eviction"
	"github.com/ValentinKolb/dSO/lib/objects"
	"github.com/ValentinKolb/dSO/rpc/common"
)

// NewMapServerAdapter creates the adapter of the "maps" service
func NewMapServerAdapter(objs *objects.Manager, clients *objects.ClientStates, evictor *eviction.Manager) IRPCServerAdapter {
	return &mapServerAdapter{objects: objs, clients: clients, evictor: evictor}
}

type mapServerAdapter struct {
	objects *objects.Manager
	clients *objects.ClientStates
	evictor *eviction.Manager
}

func (adapter *mapServerAdapter) Handle(req *common.Message) (resp *common.Message) {
	id := eviction.ObjectID(req.MapID)

	switch req.MsgType {
	case common.MsgTMapCreate:
		if req.MaxCount < 0 || req.TTI < 0 || req.TTL < 0 {
			return common.NewErrorResponse("RPC MapAdapter - max count, tti and ttl must not be negative")
		}
		return common.NewMapCreateResponse(uint64(adapter.objects.CreateMap(req.MaxCount, req.TTI, req.TTL)))

	case common.MsgTMapPut:
		if req.Inline {
			return common.NewMapPutResponse(0, adapter.objects.PutInline(id, req.Key, string(req.Value)))
		}
		ref, err := adapter.objects.Put(id, req.Key, string(req.Value), req.TTI, req.TTL)
		return common.NewMapPutResponse(uint64(ref), err)

	case common.MsgTMapGet:
		value, ref, ok, err := adapter.objects.Get(id, req.Key)
		if err != nil {
			return common.NewMapGetResponse(nil, 0, false, err)
		}
		// the entry now lives in the client and must not be evicted
		if ok && ref != 0 && req.ClientID != "" {
			adapter.clients.AddReference(req.ClientID, ref)
		}
		if !ok {
			return common.NewMapGetResponse(nil, 0, false, nil)
		}
		return common.NewMapGetResponse([]byte(value), uint64(ref), true, nil)

	case common.MsgTMapRemove:
		ok, err := adapter.objects.Remove(id, req.Key)
		return common.NewMapResponse(req.MsgType, 0, ok, err)

	case common.MsgTMapSize:
		size, err := adapter.objects.Size(id)
		return common.NewMapResponse(req.MsgType, size, err == nil, err)

	case common.MsgTMapEvict:
		// the evictor only samples maps, entry ids are rejected here
		if err := adapter.objects.IsMap(id); err != nil {
			return common.NewMapResponse(req.MsgType, 0, false, err)
		}
		faulted := eviction.NewObjectIDSet()
		adapter.clients.AddAllReferencedIDsTo(faulted)
		ran := adapter.evictor.DoEvictionOn(id, faulted)
		return common.NewMapResponse(req.MsgType, 0, ran, nil)

	case common.MsgTMapRelease:
		if req.ClientID == "" {
			return common.NewErrorResponse("RPC MapAdapter - client id is required")
		}
		refs := make([]eviction.ObjectID, len(req.Refs))
		for i, ref := range req.Refs {
			refs[i] = eviction.ObjectID(ref)
		}
		adapter.clients.RemoveReferences(req.ClientID, refs...)
		return common.NewMapResponse(req.MsgType, len(refs), true, nil)

	case common.MsgTMapDelete:
		return common.NewMapResponse(req.MsgType, 0, adapter.objects.Delete(id), nil)

	default:
		return common.NewErrorResponse(fmt.Sprintf("RPC MapAdapter - Unsupported message type: %s", req.MsgType))
	}
}

func (adapter *mapServerAdapter) Disconnect(clientID string) int {
	return adapter.clients.RemoveClient(clientID)
}
