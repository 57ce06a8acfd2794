// Package codec serializes cached values to bytes.
//
// Every codec here is usable for record.Record payloads. Wrap the chosen one
// in Sentinel so that nulls survive formats that would otherwise drop them.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
