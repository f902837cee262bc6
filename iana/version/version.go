// Package version names the on-wire protocol version carried in every
// message header, after NetFlow v5/v9 and sFlow have been normalized into
// the IPFIX shape (spec.md §4.2, §6.6).
package version

import "errors"

type ProtocolVersion uint16

var ErrUnknownProtocolVersion = errors.New("unknown protocol version")

const (
	Unknown ProtocolVersion = 0

	// IPFIX is the only protocol version the decoder accepts once a message
	// has been normalized, per spec.md §4.2 ("rejected if version ≠ 16 post-
	// normalization"). NetFlow v9 and v5 messages are rewritten to carry this
	// value before any downstream stage observes them.
	IPFIX ProtocolVersion = 16
)

func (p ProtocolVersion) String() string {
	switch p {
	case IPFIX:
		return "IPFIX"
	default:
		return "Unknown"
	}
}

func (p ProtocolVersion) MarshalText() ([]byte, error) {
	s := p.String()
	if s == "Unknown" {
		return nil, ErrUnknownProtocolVersion
	}
	return []byte(s), nil
}

func (p *ProtocolVersion) UnmarshalText(in []byte) error {
	switch string(in) {
	case "IPFIX", "ipfix":
		*p = IPFIX
	default:
		return ErrUnknownProtocolVersion
	}
	return nil
}
