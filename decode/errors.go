// Package decode implements the message decoder, spec.md §4.2 (C2): parses
// a datagram into a header and ordered lists of template, options-template,
// and data sets; normalizes NetFlow v9, v5, and (pre-converted) sFlow into
// the IPFIX wire shape first. Grounded in the teacher's decode.go/message.go
// set-walking loop, adapted from per-Message-object io.Reader decode into a
// walk over one caller-owned buffer (spec.md §3's zero-copy Message model).
package decode

import (
	"errors"
	"fmt"
)

// Error kinds named by spec.md §7 and by §4.2's normalization failure list.
var (
	ErrMalformedPacket    = errors.New("decode: malformed packet")
	ErrMalformedSet       = errors.New("decode: malformed set")
	ErrInvalidTemplate    = errors.New("decode: invalid template")
	ErrInvalidScope       = errors.New("decode: invalid scope")
	ErrUnknownTemplate    = errors.New("decode: unknown template")
	ErrTemplateCollision  = errors.New("decode: template collision")
	ErrAllocationFailure  = errors.New("decode: allocation failure")
	ErrStageFailure       = errors.New("decode: stage failure")
	ErrExporterClosed     = errors.New("decode: exporter closed")
	ErrTruncatedMessage   = errors.New("decode: truncated message")
	ErrUnknownVersion     = errors.New("decode: unknown protocol version")
	ErrUnknownSetID       = errors.New("decode: unknown set id")
)

func wrapf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{kind}, args...)...)
}
