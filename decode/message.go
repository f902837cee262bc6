package decode

import (
	"encoding/binary"

	"github.com/CESNET/ipfixcol-sub004/iana/version"
	"github.com/CESNET/ipfixcol-sub004/obs"
	"github.com/CESNET/ipfixcol-sub004/source"
	"github.com/CESNET/ipfixcol-sub004/template"
	"github.com/CESNET/ipfixcol-sub004/wire"
)

// SourceStatus mirrors a source's lifecycle state, spec.md §3/§4.5.
type SourceStatus int

const (
	StatusNew SourceStatus = iota
	StatusOpened
	StatusClosed
)

// DataCouple pairs one data set's content with the template describing it,
// spec.md §4.2: "if no template exists yet, the couple's template reference
// is null and stages see it as undecodable."
type DataCouple struct {
	SetID    uint16
	Content  []byte
	Template *template.Template
}

// Message owns one normalized, header-validated datagram and the sets
// decoded from it, spec.md §3's Message shape. Concrete per-record metadata
// (profile/channel sets, geolocation, etc.) and the message-level reference
// count belong to the pipeline package, which wraps Message for transport
// through the stage chain; decode's job ends at producing a fully parsed
// one.
type Message struct {
	Header       wire.Header
	Buf          []byte
	Source       source.Info
	SourceStatus SourceStatus

	TemplateSetCount        int
	OptionsTemplateSetCount int

	DataCouples []DataCouple
}

// Decode implements spec.md §4.2's decode contract. buf must already be in
// IPFIX wire shape; NetFlow v9/v5 callers normalize first via NormalizeV9 /
// NormalizeV5 and pass the resulting buffer here. store handles template
// admission and withdrawal as template sets are encountered.
func Decode(buf []byte, info source.Info, status SourceStatus, store template.Store) (*Message, error) {
	obs.PacketsTotal.Inc()

	if len(buf) < wire.HeaderLength {
		obs.DecodeErrorsTotal.WithLabelValues("malformed_packet").Inc()
		return nil, wrapf(ErrMalformedPacket, "buffer shorter than header (%d bytes)", len(buf))
	}

	hdr, err := wire.DecodeHeader(buf)
	if err != nil {
		obs.DecodeErrorsTotal.WithLabelValues("malformed_packet").Inc()
		return nil, wrapf(ErrMalformedPacket, "%v", err)
	}
	if hdr.Version != version.IPFIX {
		obs.DecodeErrorsTotal.WithLabelValues("unknown_version").Inc()
		return nil, wrapf(ErrUnknownVersion, "version %d", hdr.Version)
	}
	if int(hdr.Length) > len(buf) {
		obs.DecodeErrorsTotal.WithLabelValues("truncated_message").Inc()
		return nil, wrapf(ErrTruncatedMessage, "declared length %d exceeds buffer %d", hdr.Length, len(buf))
	}
	buf = buf[:hdr.Length]

	crc := source.CRC(info)

	msg := &Message{
		Header:       hdr,
		Buf:          buf,
		Source:       info,
		SourceStatus: status,
	}

	offset := wire.HeaderLength
	for offset+wire.SetHeaderLength <= len(buf) {
		sh, err := wire.DecodeSetHeader(buf[offset:])
		if err != nil {
			obs.DecodeErrorsTotal.WithLabelValues("malformed_set").Inc()
			return nil, wrapf(ErrMalformedSet, "%v", err)
		}
		if sh.Length < wire.SetHeaderLength || offset+int(sh.Length) > len(buf) {
			obs.DecodeErrorsTotal.WithLabelValues("malformed_set").Inc()
			return nil, wrapf(ErrMalformedSet, "set length %d invalid at offset %d", sh.Length, offset)
		}
		content := buf[offset+wire.SetHeaderLength : offset+int(sh.Length)]

		switch {
		case sh.ID == wire.TemplateSetID:
			if err := decodeTemplateSet(content, hdr.ObservationDomainID, crc, store); err != nil {
				return nil, err
			}
			msg.TemplateSetCount++
			obs.DecodedSetsTotal.WithLabelValues("template").Inc()

		case sh.ID == wire.OptionsTemplateSetID:
			if err := decodeOptionsTemplateSet(content, hdr.ObservationDomainID, crc, store); err != nil {
				return nil, err
			}
			msg.OptionsTemplateSetCount++
			obs.DecodedSetsTotal.WithLabelValues("options_template").Inc()

		case wire.IsDataSet(sh.ID):
			key := template.Key{ObservationDomainID: hdr.ObservationDomainID, SourceCRC: crc, TemplateID: sh.ID}
			tpl, found := store.Lookup(key)
			if found {
				store.IncRef(tpl)
			}
			msg.DataCouples = append(msg.DataCouples, DataCouple{SetID: sh.ID, Content: content, Template: tpl})
			obs.DecodedSetsTotal.WithLabelValues("data").Inc()

		default:
			obs.DecodeErrorsTotal.WithLabelValues("unknown_set_id").Inc()
			return nil, wrapf(ErrUnknownSetID, "flowset id %d", sh.ID)
		}

		offset += int(sh.Length)
	}

	return msg, nil
}

// decodeTemplateSet parses every template record packed into one template
// set's content. A record with field_count = 0 is a withdrawal signal
// (spec.md §4.2).
func decodeTemplateSet(content []byte, odid, crc uint32, store template.Store) error {
	for len(content) >= 4 {
		templateID := binary.BigEndian.Uint16(content[0:2])
		fieldCount := binary.BigEndian.Uint16(content[2:4])
		content = content[4:]
		key := template.Key{ObservationDomainID: odid, SourceCRC: crc, TemplateID: templateID}

		if fieldCount == 0 {
			store.Withdraw(key)
			continue
		}

		if err := template.ValidateFieldCount(int(fieldCount), 0, len(content)); err != nil {
			obs.DecodeErrorsTotal.WithLabelValues("invalid_template").Inc()
			return err
		}
		fields, rest, err := decodeFieldSpecs(content, int(fieldCount))
		if err != nil {
			obs.DecodeErrorsTotal.WithLabelValues("invalid_template").Inc()
			return err
		}
		if _, collided, err := store.Add(key, template.Data, fields, 0); err != nil {
			return err
		} else if collided {
			obs.DecodeErrorsTotal.WithLabelValues("template_collision").Inc()
		}
		content = rest
	}
	return nil
}

// decodeOptionsTemplateSet mirrors decodeTemplateSet for options templates,
// which carry an extra scope_field_count (spec.md §6.6).
func decodeOptionsTemplateSet(content []byte, odid, crc uint32, store template.Store) error {
	for len(content) >= 6 {
		templateID := binary.BigEndian.Uint16(content[0:2])
		fieldCount := binary.BigEndian.Uint16(content[2:4])
		scopeFieldCount := binary.BigEndian.Uint16(content[4:6])
		content = content[6:]
		key := template.Key{ObservationDomainID: odid, SourceCRC: crc, TemplateID: templateID}

		if fieldCount == 0 {
			store.Withdraw(key)
			continue
		}

		if err := template.ValidateFieldCount(int(fieldCount), int(scopeFieldCount), len(content)); err != nil {
			obs.DecodeErrorsTotal.WithLabelValues("invalid_template").Inc()
			return err
		}
		fields, rest, err := decodeFieldSpecs(content, int(fieldCount))
		if err != nil {
			obs.DecodeErrorsTotal.WithLabelValues("invalid_template").Inc()
			return err
		}
		if _, _, err := store.Add(key, template.Options, fields, int(scopeFieldCount)); err != nil {
			return err
		}
		content = rest
	}
	return nil
}

func decodeFieldSpecs(content []byte, count int) ([]wire.FieldSpec, []byte, error) {
	fields := make([]wire.FieldSpec, 0, count)
	for i := 0; i < count; i++ {
		f, n, err := wire.DecodeFieldSpec(content)
		if err != nil {
			return nil, nil, wrapf(ErrInvalidTemplate, "%v", err)
		}
		fields = append(fields, f)
		content = content[n:]
	}
	return fields, content, nil
}
