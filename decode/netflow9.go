package decode

import (
	"encoding/binary"

	"github.com/CESNET/ipfixcol-sub004/iana/version"
	"github.com/CESNET/ipfixcol-sub004/wire"
)

// netflow9HeaderLength is the fixed NetFlow v9 header: version(2), count(2),
// sysUptime(4), unixSecs(4), sequence(4), sourceID(4).
const netflow9HeaderLength = 20

const (
	netflow9TemplateFlowSetID        uint16 = 0
	netflow9OptionsTemplateFlowSetID uint16 = 1
)

// NormalizeV9 rewrites a NetFlow v9 datagram into the IPFIX wire shape,
// spec.md §4.2: "Rewrite header to IPFIX header layout; remap set IDs 0→2
// (templates) and 1→3 (options templates); leave data-set IDs untouched."
// The returned buffer is newly allocated; the flowset payload is copied
// (and its set-id fields mutated) rather than decoded twice.
func NormalizeV9(buf []byte) ([]byte, error) {
	if len(buf) < netflow9HeaderLength {
		return nil, wrapf(ErrTruncatedMessage, "netflow v9 header needs %d bytes, got %d", netflow9HeaderLength, len(buf))
	}

	unixSecs := binary.BigEndian.Uint32(buf[8:12])
	sequence := binary.BigEndian.Uint32(buf[12:16])
	sourceID := binary.BigEndian.Uint32(buf[16:20])

	payload := append([]byte(nil), buf[netflow9HeaderLength:]...)
	if err := remapV9FlowSetIDs(payload); err != nil {
		return nil, err
	}

	out := make([]byte, wire.HeaderLength+len(payload))
	hdr := wire.Header{
		Version:             version.IPFIX,
		Length:              uint16(wire.HeaderLength + len(payload)),
		ExportTime:          unixSecs,
		SequenceNumber:      sequence,
		ObservationDomainID: sourceID,
	}
	copy(out[:wire.HeaderLength], hdr.Encode())
	copy(out[wire.HeaderLength:], payload)
	return out, nil
}

// remapV9FlowSetIDs walks payload's flowsets in place, rewriting the two
// NetFlow v9 reserved ids onto their IPFIX equivalents.
func remapV9FlowSetIDs(payload []byte) error {
	offset := 0
	for offset+wire.SetHeaderLength <= len(payload) {
		id := binary.BigEndian.Uint16(payload[offset : offset+2])
		length := binary.BigEndian.Uint16(payload[offset+2 : offset+4])
		if length < wire.SetHeaderLength || offset+int(length) > len(payload) {
			return wrapf(ErrMalformedSet, "netflow v9 flowset length %d invalid at offset %d", length, offset)
		}
		switch id {
		case netflow9TemplateFlowSetID:
			binary.BigEndian.PutUint16(payload[offset:offset+2], wire.TemplateSetID)
		case netflow9OptionsTemplateFlowSetID:
			binary.BigEndian.PutUint16(payload[offset:offset+2], wire.OptionsTemplateSetID)
		}
		offset += int(length)
	}
	return nil
}
