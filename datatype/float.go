package datatype

import (
	"encoding/binary"
	"fmt"
	"math"
)

func decodeFloat(k Kind, buf []byte) (Value, error) {
	switch k {
	case Float32:
		if len(buf) != 4 {
			return Value{}, fmt.Errorf("datatype: %w: float-32 expects 4 bytes, got %d", ErrIllegalEncoding, len(buf))
		}
		bits := binary.BigEndian.Uint32(buf)
		return Value{Kind: k, Raw: buf, float: float64(math.Float32frombits(bits))}, nil
	case Float64:
		if len(buf) != 8 {
			return Value{}, fmt.Errorf("datatype: %w: float-64 expects 8 bytes, got %d", ErrIllegalEncoding, len(buf))
		}
		bits := binary.BigEndian.Uint64(buf)
		return Value{Kind: k, Raw: buf, float: math.Float64frombits(bits)}, nil
	default:
		return Value{}, fmt.Errorf("datatype: %w: %s is not a float kind", ErrIllegalEncoding, k)
	}
}

// EncodeFloat32 writes v as a big-endian IEEE 754 single-precision value.
func EncodeFloat32(v float32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(v))
	return b
}

// EncodeFloat64 writes v as a big-endian IEEE 754 double-precision value.
func EncodeFloat64(v float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return b
}
