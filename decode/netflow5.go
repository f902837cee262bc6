package decode

import (
	"encoding/binary"

	"github.com/CESNET/ipfixcol-sub004/datatype"
	"github.com/CESNET/ipfixcol-sub004/iana/version"
	"github.com/CESNET/ipfixcol-sub004/wire"
)

// netflow5HeaderLength is the fixed NetFlow v5 header: version(2), count(2),
// sysUptime(4), unixSecs(4), unixNsecs(4), flowSequence(4), engineType(1),
// engineId(1), samplingInterval(2).
const netflow5HeaderLength = 24

// netflow5RecordLength is the fixed 48-byte NetFlow v5 flow record.
const netflow5RecordLength = 48

// SyntheticV5TemplateID is the template id the decoder assigns to the
// synthetic 17-IE template it builds for every NetFlow v5 (and, by
// extension, sFlow-converted-to-v5) source, spec.md §4.2.
const SyntheticV5TemplateID uint16 = 256

// syntheticV5RecordLength is the sum of SyntheticV5Fields' widths.
const syntheticV5RecordLength = 68

// SyntheticV5Fields is the fixed 17-IE template spec.md §4.2 mandates for
// NetFlow v5: "source IPv4, dest IPv4, nexthop, in-if, out-if, packets,
// octets, flow-start, flow-end, src-port, dst-port, padding, TCP flags,
// protocol, ToS, src-AS, dst-AS." Field order and widths here are fixed and
// MUST match the record layout NormalizeV5 writes.
func SyntheticV5Fields() []wire.FieldSpec {
	return []wire.FieldSpec{
		{ElementID: 8, Length: 4},   // sourceIPv4Address
		{ElementID: 12, Length: 4},  // destinationIPv4Address
		{ElementID: 15, Length: 4},  // ipNextHopIPv4Address
		{ElementID: 10, Length: 4},  // ingressInterface
		{ElementID: 14, Length: 4},  // egressInterface
		{ElementID: 2, Length: 8},   // packetDeltaCount
		{ElementID: 1, Length: 8},   // octetDeltaCount
		{ElementID: 152, Length: 8}, // flowStartMilliseconds
		{ElementID: 153, Length: 8}, // flowEndMilliseconds
		{ElementID: 7, Length: 2},   // sourceTransportPort
		{ElementID: 11, Length: 2},  // destinationTransportPort
		{ElementID: 210, Length: 1}, // paddingOctets
		{ElementID: 6, Length: 1},   // tcpControlBits (reduced length)
		{ElementID: 4, Length: 1},   // protocolIdentifier
		{ElementID: 5, Length: 1},   // ipClassOfService
		{ElementID: 16, Length: 4},  // bgpSourceAsNumber
		{ElementID: 17, Length: 4},  // bgpDestinationAsNumber
	}
}

// NormalizeV5Options controls NormalizeV5's per-call behavior. InjectTemplate
// is decided by the caller (the input plugin or preprocessor) from a packet
// counter or wall-clock interval, per spec.md §4.2: "Inject the synthetic
// template periodically, controlled either by a packet counter or a
// wall-clock interval supplied by the input plugin." SequenceNumber is the
// caller's own IPFIX-numbering-space counter for this source, since v5's
// on-wire flow_sequence counts flows, not messages, and the remapping is
// stateful bookkeeping that belongs to the caller, not to a pure normalizer.
type NormalizeV5Options struct {
	ObservationDomainID uint32
	SequenceNumber      uint32
	InjectTemplate      bool
}

// NormalizeV5 converts a NetFlow v5 datagram into an IPFIX message carrying
// one data set of converted records, preceded by a template set holding the
// synthetic template above when opts.InjectTemplate is set, spec.md §4.2. sFlow datagrams already converted to v5 shape by an external
// collaborator are normalized by this same function, per spec.md's "from
// that point the v5 path applies."
func NormalizeV5(buf []byte, opts NormalizeV5Options) ([]byte, error) {
	if len(buf) < netflow5HeaderLength {
		return nil, wrapf(ErrTruncatedMessage, "netflow v5 header needs %d bytes, got %d", netflow5HeaderLength, len(buf))
	}

	count := int(binary.BigEndian.Uint16(buf[2:4]))
	sysUptime := binary.BigEndian.Uint32(buf[4:8])
	unixSecs := binary.BigEndian.Uint32(buf[8:12])
	unixNsecs := binary.BigEndian.Uint32(buf[12:16])

	need := netflow5HeaderLength + count*netflow5RecordLength
	if count <= 0 || need > len(buf) {
		return nil, wrapf(ErrMalformedPacket, "netflow v5 declares %d records, have %d bytes", count, len(buf))
	}

	dataContent := make([]byte, 0, count*syntheticV5RecordLength)
	for i := 0; i < count; i++ {
		rec := buf[netflow5HeaderLength+i*netflow5RecordLength:]
		dataContent = append(dataContent, convertV5Record(rec, unixSecs, unixNsecs, sysUptime)...)
	}

	fields := SyntheticV5Fields()
	var payload []byte
	if opts.InjectTemplate {
		payload = append(payload, encodeV5TemplateSet(fields)...)
	}
	payload = append(payload, encodeV5DataSet(dataContent)...)

	out := make([]byte, wire.HeaderLength+len(payload))
	hdr := wire.Header{
		Version:             version.IPFIX,
		Length:              uint16(wire.HeaderLength + len(payload)),
		ExportTime:          unixSecs,
		SequenceNumber:      opts.SequenceNumber,
		ObservationDomainID: opts.ObservationDomainID,
	}
	copy(out[:wire.HeaderLength], hdr.Encode())
	copy(out[wire.HeaderLength:], payload)
	return out, nil
}

// convertV5Record rewrites one fixed 48-byte NetFlow v5 flow record into the
// synthetic template's 68-byte layout, widening counters, interface indices,
// and AS numbers to their IANA default widths, and converting the two
// sysUptime-relative timestamps to absolute milliseconds.
func convertV5Record(rec []byte, unixSecs, unixNsecs, sysUptime uint32) []byte {
	srcAddr := rec[0:4]
	dstAddr := rec[4:8]
	nextHop := rec[8:12]
	input := binary.BigEndian.Uint16(rec[12:14])
	output := binary.BigEndian.Uint16(rec[14:16])
	dPkts := binary.BigEndian.Uint32(rec[16:20])
	dOctets := binary.BigEndian.Uint32(rec[20:24])
	first := binary.BigEndian.Uint32(rec[24:28])
	last := binary.BigEndian.Uint32(rec[28:32])
	srcPort := binary.BigEndian.Uint16(rec[32:34])
	dstPort := binary.BigEndian.Uint16(rec[34:36])
	tcpFlags := rec[37]
	protocol := rec[38]
	tos := rec[39]
	srcAS := binary.BigEndian.Uint16(rec[40:42])
	dstAS := binary.BigEndian.Uint16(rec[42:44])

	out := make([]byte, 0, syntheticV5RecordLength)
	out = append(out, srcAddr...)
	out = append(out, dstAddr...)
	out = append(out, nextHop...)
	out = append(out, datatype.EncodeUnsigned(uint64(input), 4)...)
	out = append(out, datatype.EncodeUnsigned(uint64(output), 4)...)
	out = append(out, datatype.EncodeUnsigned(uint64(dPkts), 8)...)
	out = append(out, datatype.EncodeUnsigned(uint64(dOctets), 8)...)
	out = append(out, datatype.EncodeUnsigned(v5AbsoluteMillis(unixSecs, unixNsecs, sysUptime, first), 8)...)
	out = append(out, datatype.EncodeUnsigned(v5AbsoluteMillis(unixSecs, unixNsecs, sysUptime, last), 8)...)
	out = append(out, datatype.EncodeUnsigned(uint64(srcPort), 2)...)
	out = append(out, datatype.EncodeUnsigned(uint64(dstPort), 2)...)
	out = append(out, 0) // paddingOctets
	out = append(out, tcpFlags)
	out = append(out, protocol)
	out = append(out, tos)
	out = append(out, datatype.EncodeUnsigned(uint64(srcAS), 4)...)
	out = append(out, datatype.EncodeUnsigned(uint64(dstAS), 4)...)
	return out
}

// v5AbsoluteMillis converts a sysUptime-relative millisecond value into
// absolute Unix milliseconds, using the datagram's boot-time reference
// (unix_secs/unix_nsecs anchored at sysUptime). 32-bit sysUptime wraps every
// ~49.7 days; like the original collector, conversion near a wrap is a known
// edge case left uncorrected here.
func v5AbsoluteMillis(unixSecs, unixNsecs, sysUptime, relative uint32) uint64 {
	bootMillis := int64(unixSecs)*1000 + int64(unixNsecs)/1_000_000 - int64(sysUptime)
	return uint64(bootMillis + int64(relative))
}

func encodeV5TemplateSet(fields []wire.FieldSpec) []byte {
	var body []byte
	body = binary.BigEndian.AppendUint16(body, SyntheticV5TemplateID)
	body = binary.BigEndian.AppendUint16(body, uint16(len(fields)))
	for _, f := range fields {
		body = append(body, wire.EncodeFieldSpec(f)...)
	}
	sh := wire.SetHeader{ID: wire.TemplateSetID, Length: uint16(wire.SetHeaderLength + len(body))}
	return append(sh.Encode(), body...)
}

func encodeV5DataSet(content []byte) []byte {
	sh := wire.SetHeader{ID: SyntheticV5TemplateID, Length: uint16(wire.SetHeaderLength + len(content))}
	return append(sh.Encode(), content...)
}
