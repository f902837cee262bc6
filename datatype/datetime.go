package datatype

import (
	"encoding/binary"
	"fmt"
	"time"
)

// decodeDateTime decodes the four RFC 7011 timestamp widths. Seconds and
// milliseconds are absolute since the Unix epoch; microseconds and
// nanoseconds use the NTP 64-bit fixed-point format (32-bit seconds since
// 1900, 32-bit binary fraction), per RFC 7011 §6.1.9-6.1.10.
func decodeDateTime(k Kind, buf []byte) (Value, error) {
	switch k {
	case DateTimeSeconds:
		if len(buf) != 4 {
			return Value{}, fmt.Errorf("datatype: %w: datetime-seconds expects 4 bytes, got %d", ErrIllegalEncoding, len(buf))
		}
		secs := binary.BigEndian.Uint32(buf)
		return Value{Kind: k, Raw: buf, uint: uint64(secs)}, nil
	case DateTimeMilli:
		if len(buf) != 8 {
			return Value{}, fmt.Errorf("datatype: %w: datetime-milli expects 8 bytes, got %d", ErrIllegalEncoding, len(buf))
		}
		millis := binary.BigEndian.Uint64(buf)
		return Value{Kind: k, Raw: buf, uint: millis}, nil
	case DateTimeMicro, DateTimeNano:
		if len(buf) != 8 {
			return Value{}, fmt.Errorf("datatype: %w: %s expects 8 bytes, got %d", ErrIllegalEncoding, k, len(buf))
		}
		ntpSecs := binary.BigEndian.Uint32(buf[0:4])
		ntpFrac := binary.BigEndian.Uint32(buf[4:8])
		unixSecs := int64(ntpSecs) - ntpEpochOffset
		nanos := (int64(ntpFrac) * int64(time.Second)) >> 32
		return Value{Kind: k, Raw: buf, uint: uint64(unixSecs)*1e9 + uint64(nanos)}, nil
	default:
		return Value{}, fmt.Errorf("datatype: %w: %s is not a datetime kind", ErrIllegalEncoding, k)
	}
}

// ntpEpochOffset is the number of seconds between the NTP epoch (1900-01-01)
// and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// Time interprets a decoded Value of a datetime Kind as an absolute instant.
func (v Value) Time() time.Time {
	switch v.Kind {
	case DateTimeSeconds:
		return time.Unix(int64(v.uint), 0).UTC()
	case DateTimeMilli:
		return time.UnixMilli(int64(v.uint)).UTC()
	case DateTimeMicro, DateTimeNano:
		return time.Unix(0, int64(v.uint)).UTC()
	default:
		return time.Time{}
	}
}

// EncodeDateTimeSeconds writes an absolute Unix-second timestamp.
func EncodeDateTimeSeconds(t time.Time) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(t.Unix()))
	return b
}

// EncodeDateTimeMilli writes an absolute Unix-millisecond timestamp.
func EncodeDateTimeMilli(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixMilli()))
	return b
}
