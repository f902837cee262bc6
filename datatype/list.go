package datatype

import (
	"encoding/binary"
	"fmt"
)

// ListSemantic is the IANA-assigned structured-data semantic of RFC 6313.
type ListSemantic uint8

const (
	SemanticNoneOf       ListSemantic = 0
	SemanticExactlyOneOf ListSemantic = 1
	SemanticOneOrMoreOf  ListSemantic = 2
	SemanticAllOf        ListSemantic = 3
	SemanticOrdered      ListSemantic = 4
	SemanticUndefined    ListSemantic = 0xFF
)

// BasicListHeaderLength is the fixed prefix of a basicList: one semantic
// octet, a 16-bit field id, a 16-bit element length.
const BasicListHeaderLength = 1 + 2 + 2

// SubTemplateListHeaderLength is the fixed prefix of a subTemplateList: one
// semantic octet, a 16-bit template id.
const SubTemplateListHeaderLength = 1 + 2

// BasicListHeader is the decoded fixed-width prefix of a basicList field;
// its Content is the remaining bytes, still aliasing the message buffer,
// which the record package re-walks element by element once it knows the
// element's own type from the dictionary.
type BasicListHeader struct {
	Semantic      ListSemantic
	ElementID     uint16
	ElementLength uint16
	Content       []byte
}

func DecodeBasicListHeader(buf []byte) (BasicListHeader, error) {
	if len(buf) < BasicListHeaderLength {
		return BasicListHeader{}, fmt.Errorf("datatype: %w: basic-list header truncated", ErrIllegalEncoding)
	}
	return BasicListHeader{
		Semantic:      ListSemantic(buf[0]),
		ElementID:     binary.BigEndian.Uint16(buf[1:3]),
		ElementLength: binary.BigEndian.Uint16(buf[3:5]),
		Content:       buf[BasicListHeaderLength:],
	}, nil
}

// SubTemplateListHeader is the decoded fixed-width prefix of a
// subTemplateList field. Content holds the concatenated data records;
// walking them requires the template named by TemplateID, so the record
// package (not this one) performs that walk to avoid a dependency cycle.
type SubTemplateListHeader struct {
	Semantic   ListSemantic
	TemplateID uint16
	Content    []byte
}

func DecodeSubTemplateListHeader(buf []byte) (SubTemplateListHeader, error) {
	if len(buf) < SubTemplateListHeaderLength {
		return SubTemplateListHeader{}, fmt.Errorf("datatype: %w: sub-template-list header truncated", ErrIllegalEncoding)
	}
	return SubTemplateListHeader{
		Semantic:   ListSemantic(buf[0]),
		TemplateID: binary.BigEndian.Uint16(buf[1:3]),
		Content:    buf[SubTemplateListHeaderLength:],
	}, nil
}

// SubTemplateMultiListEntry is one (template id, record bytes) couple
// inside a subTemplateMultiList's content.
type SubTemplateMultiListEntry struct {
	TemplateID uint16
	Content    []byte
}

// DecodeSubTemplateMultiList walks a subTemplateMultiList's content,
// which repeats {template_id(16), length(16), record bytes} until
// exhausted. It returns the leading semantic octet and the parsed entries.
func DecodeSubTemplateMultiList(buf []byte) (ListSemantic, []SubTemplateMultiListEntry, error) {
	if len(buf) < 1 {
		return 0, nil, fmt.Errorf("datatype: %w: sub-template-multilist header truncated", ErrIllegalEncoding)
	}
	semantic := ListSemantic(buf[0])
	rest := buf[1:]

	var entries []SubTemplateMultiListEntry
	for len(rest) > 0 {
		if len(rest) < 4 {
			break
		}
		tid := binary.BigEndian.Uint16(rest[0:2])
		length := binary.BigEndian.Uint16(rest[2:4])
		rest = rest[4:]
		if int(length) > len(rest) {
			break
		}
		entries = append(entries, SubTemplateMultiListEntry{TemplateID: tid, Content: rest[:length]})
		rest = rest[length:]
	}
	return semantic, entries, nil
}
