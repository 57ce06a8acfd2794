package codec

import (
	"fmt"
	"strings"

	"github.com/unkn0wn-root/reccache/record"
)

// NullMarker stands in for a null value inside cached payloads.
const NullMarker = "NaN"

// EncodeSentinels returns a copy of r with every null (or float NaN) value
// replaced by NullMarker. r is not modified.
func EncodeSentinels(r record.Record) record.Record {
	out := make(record.Record, len(r))
	for k, v := range r {
		if v == nil || record.IsNaN(v) {
			out[k] = NullMarker
			continue
		}
		out[k] = v
	}
	return out
}

// DecodeSentinels replaces every NullMarker value in r with nil, in place.
func DecodeSentinels(r record.Record) record.Record {
	for k, v := range r {
		if s, ok := v.(string); ok && s == NullMarker {
			r[k] = nil
		}
	}
	return r
}

// Sentinel wraps a record codec so explicit nulls are carried as NullMarker
// in the encoded bytes and restored on decode. Missing fields stay missing.
type Sentinel struct {
	Inner Codec[record.Record]
}

var _ Codec[record.Record] = Sentinel{}

func (s Sentinel) Encode(r record.Record) ([]byte, error) {
	return s.Inner.Encode(EncodeSentinels(r))
}

func (s Sentinel) Decode(b []byte) (record.Record, error) {
	r, err := s.Inner.Decode(b)
	if err != nil {
		return nil, err
	}
	return DecodeSentinels(r), nil
}

// ForRecords builds the record codec named by name (json, msgpack, cbor or
// protobuf), wrapped in Sentinel and, if maxDecode > 0, in LimitCodec.
func ForRecords(name string, maxDecode int) (Codec[record.Record], error) {
	var inner Codec[record.Record]
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		inner = JSON[record.Record]{}
	case "msgpack":
		inner = Msgpack[record.Record]{}
	case "cbor":
		c, err := NewCBOR[record.Record](true)
		if err != nil {
			return nil, err
		}
		inner = c
	case "protobuf":
		inner = Protobuf{}
	default:
		return nil, fmt.Errorf("codec: unknown record codec %q", name)
	}
	var c Codec[record.Record] = Sentinel{Inner: inner}
	if maxDecode > 0 {
		c = LimitCodec[record.Record]{Inner: c, MaxDecode: maxDecode}
	}
	return c, nil
}
