package datatype

import (
	"encoding/binary"
	"fmt"
)

// decodeUnsigned decodes an unsigned integer abstract data type, supporting
// RFC 7011 reduced-length encoding: buf may be shorter than the type's
// default width, in which case it is treated as the low-order bytes of a
// big-endian value (grounded in the teacher's reduced-length Decode path).
func decodeUnsigned(k Kind, buf []byte) (Value, error) {
	max := int(k.DefaultLength())
	if len(buf) == 0 || len(buf) > max {
		return Value{}, fmt.Errorf("datatype: %w: %s expects up to %d bytes, got %d", ErrIllegalEncoding, k, max, len(buf))
	}
	var padded [8]byte
	copy(padded[8-len(buf):], buf)
	return Value{Kind: k, Raw: buf, uint: binary.BigEndian.Uint64(padded[:])}, nil
}

// decodeSigned decodes a signed integer abstract data type. Reduced-length
// encodings are sign-extended from the most significant bit of the leading
// byte, matching two's complement semantics for a narrower field.
func decodeSigned(k Kind, buf []byte) (Value, error) {
	max := int(k.DefaultLength())
	if len(buf) == 0 || len(buf) > max {
		return Value{}, fmt.Errorf("datatype: %w: %s expects up to %d bytes, got %d", ErrIllegalEncoding, k, max, len(buf))
	}
	var padded [8]byte
	if buf[0]&0x80 != 0 {
		for i := range padded {
			padded[i] = 0xFF
		}
	}
	copy(padded[8-len(buf):], buf)
	return Value{Kind: k, Raw: buf, sint: int64(binary.BigEndian.Uint64(padded[:]))}, nil
}

// EncodeUnsigned writes v into width bytes of big-endian encoding.
func EncodeUnsigned(v uint64, width int) []byte {
	var full [8]byte
	binary.BigEndian.PutUint64(full[:], v)
	return append([]byte(nil), full[8-width:]...)
}

// EncodeSigned writes v into width bytes of two's complement big-endian
// encoding.
func EncodeSigned(v int64, width int) []byte {
	return EncodeUnsigned(uint64(v), width)
}
