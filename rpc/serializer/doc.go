// Package serializer converts RPC messages to and from bytes.
//
// Key Components:
//
//   - IRPCSerializer: the interface every serializer implements.
//
//   - jsonSerializerImpl: JSON encoding. Message types are written as their
//     names, which keeps the wire format readable with curl.
//
//   - gobSerializerImpl: Go's gob encoding, for Go clients talking to Go
//     servers.
//
// Thread Safety:
//
//	Both serializers are stateless and safe for concurrent use.
//
// Usage:
//
//	s := serializer.NewJSONSerializer()
//	data, err := s.Serialize(*common.NewPollRequest(clientID))
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(respData, &resp)
package serializer
