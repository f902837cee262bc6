// Package wire defines the on-the-wire shapes shared by every dialect the
// collector speaks, per spec.md §6.6: the IPFIX message header, set header,
// and template field specifier layout. NetFlow v9 and v5 are normalized
// into this shape before any other package sees them (spec.md §4.2).
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/CESNET/ipfixcol-sub004/iana/version"
)

// HeaderLength is the fixed IPFIX message header size in bytes: version,
// length, export time, sequence number, observation domain id.
const HeaderLength = 16

// SetHeaderLength is the fixed set header size in bytes: set id, length.
const SetHeaderLength = 4

// Reserved flowset ids, per spec.md §6.6. Data sets use ids >= 256.
const (
	TemplateSetID        uint16 = 2
	OptionsTemplateSetID uint16 = 3
	MinDataSetID         uint16 = 256
)

// PENMask is the top bit of an on-wire field specifier's information
// element id; when set, a 32-bit enterprise number follows the length.
const PENMask uint16 = 0x8000

// VariableLength is the field-specifier length sentinel denoting that the
// field's actual length is carried in the data record itself (spec.md §3).
const VariableLength uint16 = 0xFFFF

// VariableLengthShortMax is the largest length the 1-byte variable-length
// prefix can carry directly; 0xFF instead flags a 2-byte extended length
// (spec.md §4.3).
const VariableLengthShortMax = 0xFE

// Header is the 16-byte IPFIX message header (spec.md §6.6). NetFlow v9 and
// v5 headers are rewritten into this shape during normalization.
type Header struct {
	Version             version.ProtocolVersion
	Length              uint16
	ExportTime          uint32
	SequenceNumber      uint32
	ObservationDomainID uint32
}

// Encode writes the header in network byte order and returns the bytes
// written.
func (h Header) Encode() []byte {
	b := make([]byte, 0, HeaderLength)
	b = binary.BigEndian.AppendUint16(b, uint16(h.Version))
	b = binary.BigEndian.AppendUint16(b, h.Length)
	b = binary.BigEndian.AppendUint32(b, h.ExportTime)
	b = binary.BigEndian.AppendUint32(b, h.SequenceNumber)
	b = binary.BigEndian.AppendUint32(b, h.ObservationDomainID)
	return b
}

// DecodeHeader parses the fixed 16-byte message header from the front of
// buf. It does not validate the version or the length field against the
// buffer; callers apply spec.md §4.2's MalformedPacket checks themselves
// once normalization (if any) has run.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLength {
		return Header{}, fmt.Errorf("wire: buffer shorter than header (%d < %d)", len(buf), HeaderLength)
	}
	return Header{
		Version:             version.ProtocolVersion(binary.BigEndian.Uint16(buf[0:2])),
		Length:              binary.BigEndian.Uint16(buf[2:4]),
		ExportTime:          binary.BigEndian.Uint32(buf[4:8]),
		SequenceNumber:      binary.BigEndian.Uint32(buf[8:12]),
		ObservationDomainID: binary.BigEndian.Uint32(buf[12:16]),
	}, nil
}

// SetHeader is the 4-byte header prefixing every set (spec.md §6.6).
type SetHeader struct {
	ID     uint16
	Length uint16
}

func DecodeSetHeader(buf []byte) (SetHeader, error) {
	if len(buf) < SetHeaderLength {
		return SetHeader{}, fmt.Errorf("wire: buffer shorter than set header (%d < %d)", len(buf), SetHeaderLength)
	}
	return SetHeader{
		ID:     binary.BigEndian.Uint16(buf[0:2]),
		Length: binary.BigEndian.Uint16(buf[2:4]),
	}, nil
}

func (sh SetHeader) Encode() []byte {
	b := make([]byte, 0, SetHeaderLength)
	b = binary.BigEndian.AppendUint16(b, sh.ID)
	b = binary.BigEndian.AppendUint16(b, sh.Length)
	return b
}

// IsDataSet reports whether id denotes a data set rather than a (options)
// template set, per spec.md §6.6.
func IsDataSet(id uint16) bool {
	return id >= MinDataSetID
}

// FieldSpec is one decoded template field specifier: an information
// element reference plus its declared length (spec.md §3).
type FieldSpec struct {
	EnterpriseNumber uint32
	ElementID        uint16 // top bit already cleared
	Length           uint16
}

// IsVariableLength reports whether the field specifier declares the
// variable-length sentinel (spec.md §3, length = 65535).
func (f FieldSpec) IsVariableLength() bool {
	return f.Length == VariableLength
}

// FieldSpecWireLength returns the number of bytes a field specifier occupies
// on the wire: 4 bytes, plus 4 more when an enterprise number is present.
func FieldSpecWireLength(enterpriseNumber uint32) int {
	if enterpriseNumber != 0 {
		return 8
	}
	return 4
}

// DecodeFieldSpec parses one field specifier from the front of buf,
// returning the specifier and the number of bytes consumed. It does not
// bounds-check buf beyond what is necessary to avoid a panic; the caller
// (template admission, spec.md §4.1) is responsible for rejecting a
// specifier that would read past the enclosing set (InvalidTemplate).
func DecodeFieldSpec(buf []byte) (FieldSpec, int, error) {
	if len(buf) < 4 {
		return FieldSpec{}, 0, fmt.Errorf("wire: field specifier truncated (%d bytes)", len(buf))
	}
	rawID := binary.BigEndian.Uint16(buf[0:2])
	length := binary.BigEndian.Uint16(buf[2:4])

	if rawID&PENMask == 0 {
		return FieldSpec{ElementID: rawID, Length: length}, 4, nil
	}

	if len(buf) < 8 {
		return FieldSpec{}, 0, fmt.Errorf("wire: enterprise field specifier truncated (%d bytes)", len(buf))
	}
	pen := binary.BigEndian.Uint32(buf[4:8])
	return FieldSpec{
		EnterpriseNumber: pen,
		ElementID:        rawID &^ PENMask,
		Length:           length,
	}, 8, nil
}

// EncodeFieldSpec is the inverse of DecodeFieldSpec.
func EncodeFieldSpec(f FieldSpec) []byte {
	b := make([]byte, 0, 8)
	if f.EnterpriseNumber != 0 {
		b = binary.BigEndian.AppendUint16(b, f.ElementID|PENMask)
		b = binary.BigEndian.AppendUint16(b, f.Length)
		b = binary.BigEndian.AppendUint32(b, f.EnterpriseNumber)
		return b
	}
	b = binary.BigEndian.AppendUint16(b, f.ElementID)
	b = binary.BigEndian.AppendUint16(b, f.Length)
	return b
}
