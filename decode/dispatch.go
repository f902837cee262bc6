package decode

import "encoding/binary"

// rawVersion peeks the first two bytes of a datagram without otherwise
// interpreting it, so the caller can pick the right normalizer before
// Decode ever runs.
func rawVersion(buf []byte) (uint16, bool) {
	if len(buf) < 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(buf[0:2]), true
}

// Normalize inspects buf's leading version field and rewrites NetFlow v9 or
// v5 datagrams into the IPFIX wire shape, passing IPFIX datagrams through
// unchanged. v5Opts is only consulted when the datagram is NetFlow v5;
// sFlow is out of scope here since spec.md defers it to an external
// converter that already emits v5-shaped datagrams (§4.2).
func Normalize(buf []byte, v5Opts NormalizeV5Options) ([]byte, error) {
	v, ok := rawVersion(buf)
	if !ok {
		return nil, wrapf(ErrTruncatedMessage, "datagram shorter than a version field (%d bytes)", len(buf))
	}
	switch v {
	case 9:
		return NormalizeV9(buf)
	case 5:
		return NormalizeV5(buf, v5Opts)
	case 16:
		return buf, nil
	default:
		return nil, wrapf(ErrUnknownVersion, "raw version %d", v)
	}
}
