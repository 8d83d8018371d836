package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dSO/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding. Message
// types travel as their names ("lock", "map-get", ...), which keeps the wire
// format readable with curl.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (jsonSerializerImpl) Name() string { return "json" }

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json: encode %s: %w", msg.MsgType, err)
	}
	return b, nil
}

func (jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	if len(b) == 0 {
		return ErrEmpty
	}
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("json: decode: %w", err)
	}
	return nil
}
