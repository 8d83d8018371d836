package serializer

import (
	"errors"

	"github.com/ValentinKolb/dSO/rpc/common"
)

// ErrEmpty is returned when an empty payload is deserialized
var ErrEmpty = errors.New("serializer: empty payload")

// IRPCSerializer turns Messages into request and response bodies and back
type IRPCSerializer interface {
	// Name is the flag value that selects the serializer (json, gob)
	Name() string
	// Serialize encodes msg
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. Empty input yields ErrEmpty.
	Deserialize(b []byte, msg *common.Message) error
}
