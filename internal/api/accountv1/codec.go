package accountv1

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// CodecName is registered in place of Connect's protobuf JSON codec.
const CodecName = "json"

// Codec marshals the plain message structs of this package.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (Codec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}
