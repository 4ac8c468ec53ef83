package transport

import "encoding/json"

// jsonCodec implements encoding.Codec (the interface grpc.ForceServerCodec
// and grpc.ForceCodec expect) over plain JSON, standing in for a
// protoc-generated protobuf codec.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "directord-json"
}
