package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/reccache/record"
)

// Protobuf encodes records as a google.protobuf.Struct message.
// Numbers come back as float64, the same as with the JSON codec.
type Protobuf struct{}

var _ Codec[record.Record] = Protobuf{}

func (Protobuf) Encode(r record.Record) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any(r))
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func (Protobuf) Decode(b []byte) (record.Record, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return record.Record(s.AsMap()), nil
}
