package client

import (
	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/ValentinKolb/dSO/rpc/serializer"
	"github.com/ValentinKolb/dSO/rpc/transport"
)

// NewRPCMaps creates a new map client with a fresh client id
// The function takes a config, a transport and a serializer as parameters
func NewRPCMaps(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCMaps, error) {
	adapter, err := newClientAdapter(serviceMaps, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &RPCMaps{adapter}, nil
}

// RPCMaps is the client of the evictable maps. Entries read with Get are
// faulted into this client and stay on the server until they are released
// or the client disconnects.
type RPCMaps struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Map operations
// --------------------------------------------------------------------------

// Create creates a map. maxCount 0 means unbounded, tti and ttl 0 mean eternal.
func (m *RPCMaps) Create(maxCount, tti, ttl int) (mapID uint64, err error) {
	resp, err := m.invoke(common.NewMapCreateRequest(maxCount, tti, ttl))
	if err != nil {
		return 0, err
	}
	return resp.MapID, nil
}

// Put stores value in an entry object and returns the entry's id
func (m *RPCMaps) Put(mapID uint64, key string, value []byte, tti, ttl int) (ref uint64, err error) {
	resp, err := m.invoke(common.NewMapPutRequest(mapID, key, value, tti, ttl, false))
	if err != nil {
		return 0, err
	}
	return resp.Ref, nil
}

// PutInline stores value directly in the map
func (m *RPCMaps) PutInline(mapID uint64, key string, value []byte) (err error) {
	_, err = m.invoke(common.NewMapPutRequest(mapID, key, value, 0, 0, true))
	return err
}

// Get reads a key. A non zero ref is faulted into this client.
func (m *RPCMaps) Get(mapID uint64, key string) (value []byte, ref uint64, loaded bool, err error) {
	resp, err := m.invoke(common.NewMapGetRequest(mapID, key, m.clientID))
	if err != nil {
		return nil, 0, false, err
	}
	return resp.Value, resp.Ref, resp.Ok, nil
}

// Remove deletes a key
func (m *RPCMaps) Remove(mapID uint64, key string) (removed bool, err error) {
	resp, err := m.invoke(common.NewMapRemoveRequest(mapID, key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

// Size returns the number of keys of a map
func (m *RPCMaps) Size(mapID uint64) (int, error) {
	resp, err := m.invoke(common.NewMapSizeRequest(mapID))
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Evict starts an eviction pass on a map. It returns false if a pass on the
// map is already running and an error if mapID is not a map.
func (m *RPCMaps) Evict(mapID uint64) (started bool, err error) {
	resp, err := m.invoke(common.NewMapEvictRequest(mapID))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

// Release makes faulted entries evictable again
func (m *RPCMaps) Release(refs ...uint64) error {
	_, err := m.invoke(common.NewMapReleaseRequest(m.clientID, refs))
	return err
}

// Delete deletes a map and its entries
func (m *RPCMaps) Delete(mapID uint64) (deleted bool, err error) {
	resp, err := m.invoke(common.NewMapDeleteRequest(mapID))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

// Close disconnects the client, which releases all faulted entries
func (m *RPCMaps) Close() error {
	return m.disconnect()
}
