// Package record implements the record walker, spec.md §4.3 (C3): a
// field-addressable, allocation-free view over one data record, given its
// template. It is grounded in the teacher's field-decoding logic (field.go,
// fixed.go, variable.go) adapted from per-field io.Reader decode into a
// single offset-tracking walk over a byte slice, since data records here
// are views into a message buffer rather than independently decoded
// objects (spec.md §3, "A data record is a pointer into the owning
// message's byte buffer").
package record

import (
	"errors"

	"github.com/CESNET/ipfixcol-sub004/template"
)

// errFieldNotFound is never returned to callers of Field, whose signature
// uses (slice, bool) for spec.md §4.3's "FieldNotFound surfaces as None";
// SetField returns it when the field is absent.
var errFieldNotFound = errors.New("record: field not found")

// errTruncated is walk's sentinel for "the record ran out of buffer
// mid-field." It is distinct from a clean, successful walk (nil error) so
// Next can tell a malformed record apart from a legitimate stop and drop it
// instead of yielding a partial View.
var errTruncated = errors.New("record: truncated")

// View is one data record: a slice into the owning message's buffer, plus
// the template that describes how to walk it. It has no stored length;
// length is derived by walking fields (spec.md §3).
type View struct {
	Buf      []byte
	Template *template.Template
}

// fieldOffset describes one field's position in a record. Length and Field
// do not use or cache it: both re-walk variable-length fields from the
// start on every call, and Length short-circuits via FixedPartLength for a
// template with no variable fields.
type fieldOffset struct {
	offset int
	length int
	ok     bool
}

// Length returns the record's actual byte length. For fixed templates this
// is FixedPartLength; for templates with variable-length fields, it walks
// the record once, per spec.md §4.3.
func (v View) Length() (uint16, error) {
	if !v.Template.HasVariableLength() {
		return uint16(v.Template.FixedPartLength()), nil
	}
	n, err := v.walk(len(v.Template.Fields))
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}

// walk advances through the first `count` fields of the template, returning
// errTruncated if the record runs out of buffer mid-field — spec.md §4.3:
// "a malformed record stops the walk early and returns the records consumed
// so far," which requires the caller to be able to tell a truncated walk
// apart from one that completed cleanly. The returned int is the byte
// offset immediately after the last field successfully walked.
func (v View) walk(count int) (int, error) {
	offset := 0
	for i := 0; i < count && i < len(v.Template.Fields); i++ {
		f := v.Template.Fields[i]
		length := int(f.Length)
		if f.IsVariableLength() {
			n, prefixLen, ok := decodeVariableLengthPrefix(v.Buf, offset)
			if !ok {
				return offset, errTruncated
			}
			offset += prefixLen
			length = n
		}
		if offset+length > len(v.Buf) {
			return offset, errTruncated
		}
		offset += length
	}
	return offset, nil
}

// decodeVariableLengthPrefix implements spec.md §4.3: "If the first length
// byte is < 255, it is the length; if it is 255, the following two bytes
// hold a big-endian length." Returns the decoded length, the number of
// prefix bytes consumed, and whether the buffer had enough bytes to read
// the prefix at all.
func decodeVariableLengthPrefix(buf []byte, at int) (length int, prefixLen int, ok bool) {
	if at >= len(buf) {
		return 0, 0, false
	}
	first := buf[at]
	if first < 0xFF {
		return int(first), 1, true
	}
	if at+3 > len(buf) {
		return 0, 0, false
	}
	ext := int(buf[at+1])<<8 | int(buf[at+2])
	return ext, 3, true
}

// fieldPosition locates ie_ref within the template's field list, returning
// the index, or -1 if absent.
func fieldPosition(t *template.Template, enterpriseNumber uint32, elementID uint16) int {
	for i, f := range t.Fields {
		if f.EnterpriseNumber == enterpriseNumber && f.ElementID == elementID {
			return i
		}
	}
	return -1
}

// Field returns a byte slice into the message buffer holding the named
// field's value, and whether the field was found within the buffer. It consults the template's offset cache
// first (spec.md §4.3: "For enterprise-zero IEs matching the precomputed
// offset cache, returns immediately without walking"); only variable or
// uncached fields require a walk.
func (v View) Field(enterpriseNumber uint32, elementID uint16) ([]byte, bool) {
	offset, found := v.Template.ContainsField(enterpriseNumber, elementID)
	if !found {
		return nil, false
	}
	if offset >= 0 {
		idx := fieldPosition(v.Template, enterpriseNumber, elementID)
		length := int(v.Template.Fields[idx].Length)
		o := int(offset)
		if o+length > len(v.Buf) {
			return nil, false
		}
		return v.Buf[o : o+length], true
	}

	idx := fieldPosition(v.Template, enterpriseNumber, elementID)
	if idx < 0 {
		return nil, false
	}

	offset, err := v.walk(idx)
	if err != nil {
		return nil, false
	}

	f := v.Template.Fields[idx]
	length := int(f.Length)
	if f.IsVariableLength() {
		n, prefixLen, ok := decodeVariableLengthPrefix(v.Buf, offset)
		if !ok {
			return nil, false
		}
		offset += prefixLen
		length = n
	}
	if offset+length > len(v.Buf) {
		return nil, false
	}
	return v.Buf[offset : offset+length], true
}

// SetField writes value in place over the named field's current bytes; the
// new value's length must match the field's current length exactly
// (spec.md §4.3, "in-place write; size must match").
func (v View) SetField(enterpriseNumber uint32, elementID uint16, value []byte) error {
	slice, ok := v.Field(enterpriseNumber, elementID)
	if !ok {
		return errFieldNotFound
	}
	if len(slice) != len(value) {
		return errors.New("record: SetField length mismatch")
	}
	copy(slice, value)
	return nil
}

// Walker iterates the data records inside one set's content, in order,
// stopping (without error) at the first record that would read past the
// set's declared length — spec.md §4.3: "A record walk never reads past
// set.length; if a field would extend past, the record is skipped and the
// message is truncated at that set."
type Walker struct {
	content  []byte
	template *template.Template
	offset   int
}

// Records constructs a Walker over a data set's content (the bytes after
// the 4-byte set header) for the given template.
func Records(setContent []byte, tpl *template.Template) Walker {
	return Walker{content: setContent, template: tpl}
}

// Next returns the next record view, or ok=false once the set is exhausted
// or truncated.
func (w *Walker) Next() (view View, ok bool) {
	if w.offset >= len(w.content) {
		return View{}, false
	}
	remaining := w.content[w.offset:]
	v := View{Buf: remaining, Template: w.template}
	length, err := v.Length()
	if err != nil || length == 0 || int(length) > len(remaining) {
		return View{}, false
	}
	w.offset += int(length)
	return View{Buf: remaining[:length], Template: w.template}, true
}
