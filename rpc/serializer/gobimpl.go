package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ValentinKolb/dSO/rpc/common"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format.
// Every payload carries its own type description, so encoders are not
// shared between calls.
func NewGOBSerializer() IRPCSerializer {
	return gobSerializerImpl{}
}

type gobSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (gobSerializerImpl) Name() string { return "gob" }

func (gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("gob: encode %s: %w", msg.MsgType, err)
	}
	return buf.Bytes(), nil
}

func (gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	if len(b) == 0 {
		return ErrEmpty
	}
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(msg); err != nil {
		return fmt.Errorf("gob: decode: %w", err)
	}
	return nil
}
