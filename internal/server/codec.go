package server

import "encoding/json"

// Codec marshals messages as plain JSON. It is registered under connect's "json"
// name, replacing the protobuf JSON codec for both handlers and clients.
type Codec struct{}

func (Codec) Name() string {
	return "json"
}

func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
