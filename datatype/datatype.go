// Package datatype implements the IPFIX abstract data types named by
// spec.md §6.4's ElementDef.type enum. Decoding never copies the input
// buffer for octet-array, list or address types: the value aliases the slice
// the record walker handed it, so the storage cost is the parse itself, not
// an allocation (spec.md §4.3, "the walker never allocates"). A String value
// also aliases buf in Raw, and additionally holds a copy as a Go string.
package datatype

import (
	"errors"
	"fmt"
)

// ErrIllegalEncoding is returned when the on-wire bytes do not form a valid
// encoding of the data type, e.g. a boolean octet that is neither 1 nor 2.
var ErrIllegalEncoding = errors.New("illegal data type encoding")

// Kind names one of the IPFIX abstract data types, spelled exactly as
// spec.md §6.4 enumerates ElementDef.type.
type Kind int

const (
	Unassigned Kind = iota
	OctetArray
	Unsigned8
	Unsigned16
	Unsigned32
	Unsigned64
	Signed8
	Signed16
	Signed32
	Signed64
	Float32
	Float64
	Boolean
	Mac
	String
	DateTimeSeconds
	DateTimeMilli
	DateTimeMicro
	DateTimeNano
	IPv4
	IPv6
	BasicList
	SubTemplateList
	SubTemplateMultiList
)

func (k Kind) String() string {
	switch k {
	case OctetArray:
		return "octet-array"
	case Unsigned8:
		return "unsigned-8"
	case Unsigned16:
		return "unsigned-16"
	case Unsigned32:
		return "unsigned-32"
	case Unsigned64:
		return "unsigned-64"
	case Signed8:
		return "signed-8"
	case Signed16:
		return "signed-16"
	case Signed32:
		return "signed-32"
	case Signed64:
		return "signed-64"
	case Float32:
		return "float-32"
	case Float64:
		return "float-64"
	case Boolean:
		return "boolean"
	case Mac:
		return "mac"
	case String:
		return "string"
	case DateTimeSeconds:
		return "datetime-seconds"
	case DateTimeMilli:
		return "datetime-milli"
	case DateTimeMicro:
		return "datetime-micro"
	case DateTimeNano:
		return "datetime-nano"
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	case BasicList:
		return "basic-list"
	case SubTemplateList:
		return "sub-template-list"
	case SubTemplateMultiList:
		return "sub-template-multilist"
	default:
		return "unassigned"
	}
}

// Parse is the inverse of String, used by the element dictionary's YAML/CSV
// loader (ie package) and by config-driven filter expressions (profile
// package) that name a type by its spec spelling.
func Parse(s string) Kind {
	for _, k := range allKinds {
		if k.String() == s {
			return k
		}
	}
	return Unassigned
}

var allKinds = []Kind{
	OctetArray, Unsigned8, Unsigned16, Unsigned32, Unsigned64,
	Signed8, Signed16, Signed32, Signed64,
	Float32, Float64, Boolean, Mac, String,
	DateTimeSeconds, DateTimeMilli, DateTimeMicro, DateTimeNano,
	IPv4, IPv6, BasicList, SubTemplateList, SubTemplateMultiList,
}

// FromNumber looks up the IANA-assigned abstractDataType numeric identifier
// used by RFC 5610 element definitions and by the binary element-dictionary
// wire format.
func FromNumber(id uint8) (Kind, error) {
	switch id {
	case 0:
		return OctetArray, nil
	case 1:
		return Unsigned8, nil
	case 2:
		return Unsigned16, nil
	case 3:
		return Unsigned32, nil
	case 4:
		return Unsigned64, nil
	case 5:
		return Signed8, nil
	case 6:
		return Signed16, nil
	case 7:
		return Signed32, nil
	case 8:
		return Signed64, nil
	case 9:
		return Float32, nil
	case 10:
		return Float64, nil
	case 11:
		return Boolean, nil
	case 12:
		return Mac, nil
	case 13:
		return String, nil
	case 14:
		return DateTimeSeconds, nil
	case 15:
		return DateTimeMilli, nil
	case 16:
		return DateTimeMicro, nil
	case 17:
		return DateTimeNano, nil
	case 18:
		return IPv4, nil
	case 19:
		return IPv6, nil
	case 20:
		return BasicList, nil
	case 21:
		return SubTemplateList, nil
	case 22:
		return SubTemplateMultiList, nil
	default:
		return Unassigned, fmt.Errorf("datatype: id %d is not assigned", id)
	}
}

// DefaultLength returns the type's fixed wire length, or 0 when the type is
// variable-length (octetArray, string, and the list types).
func (k Kind) DefaultLength() uint16 {
	switch k {
	case Unsigned8, Signed8, Boolean:
		return 1
	case Unsigned16, Signed16:
		return 2
	case Unsigned32, Signed32, Float32, DateTimeSeconds, IPv4:
		return 4
	case Unsigned64, Signed64, Float64, DateTimeMilli, DateTimeMicro, DateTimeNano:
		return 8
	case Mac:
		return 6
	case IPv6:
		return 16
	default:
		return 0
	}
}

// Value is a decoded IPFIX field value. Exactly one of the typed
// accessors is meaningful, selected by Kind; Raw always holds the bytes the
// value was decoded from, aliasing the owning message buffer.
type Value struct {
	Kind Kind
	Raw  []byte

	uint  uint64
	sint  int64
	float float64
	boo   bool
	str   string
}

func (v Value) Uint() uint64   { return v.uint }
func (v Value) Int() int64     { return v.sint }
func (v Value) Float() float64 { return v.float }
func (v Value) Bool() bool     { return v.boo }
func (v Value) Str() string    { return v.str }

// Decode parses buf as an encoding of kind k. For reduced-length integer
// encodings, len(buf) may be shorter than k.DefaultLength(); any other
// mismatch between len(buf) and the type's natural width is an error.
func Decode(k Kind, buf []byte) (Value, error) {
	switch k {
	case OctetArray:
		return Value{Kind: k, Raw: buf}, nil
	case String:
		return Value{Kind: k, Raw: buf, str: string(buf)}, nil
	case Unsigned8, Unsigned16, Unsigned32, Unsigned64:
		return decodeUnsigned(k, buf)
	case Signed8, Signed16, Signed32, Signed64:
		return decodeSigned(k, buf)
	case Float32, Float64:
		return decodeFloat(k, buf)
	case Boolean:
		return decodeBoolean(buf)
	case Mac, IPv4, IPv6:
		return decodeAddress(k, buf)
	case DateTimeSeconds, DateTimeMilli, DateTimeMicro, DateTimeNano:
		return decodeDateTime(k, buf)
	case BasicList, SubTemplateList, SubTemplateMultiList:
		return Value{Kind: k, Raw: buf}, nil
	default:
		return Value{}, fmt.Errorf("datatype: %w: kind %s", ErrIllegalEncoding, k)
	}
}
