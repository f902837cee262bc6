package record

import (
	"encoding/binary"
	"testing"

	"github.com/CESNET/ipfixcol-sub004/template"
	"github.com/CESNET/ipfixcol-sub004/wire"
)

func fixedTemplate(t *testing.T) *template.Template {
	s := template.NewEphemeralStore()
	key := template.Key{ObservationDomainID: 1, SourceCRC: 1, TemplateID: 256}
	fields := []wire.FieldSpec{
		{ElementID: 8, Length: 4},  // sourceIPv4Address
		{ElementID: 12, Length: 4}, // destinationIPv4Address
		{ElementID: 2, Length: 8},  // packetDeltaCount
	}
	tpl, _, err := s.Add(key, template.Data, fields, 0)
	if err != nil {
		t.Fatal(err)
	}
	return tpl
}

func TestFieldFixedTemplate(t *testing.T) {
	tpl := fixedTemplate(t)
	buf := make([]byte, 16)
	buf[0], buf[1], buf[2], buf[3] = 192, 0, 2, 1
	buf[4], buf[5], buf[6], buf[7] = 192, 0, 2, 2
	binary.BigEndian.PutUint64(buf[8:16], 42)

	v := View{Buf: buf, Template: tpl}
	length, err := v.Length()
	if err != nil || length != 16 {
		t.Fatalf("expected length 16, got %d, %v", length, err)
	}

	src, ok := v.Field(0, 8)
	if !ok || src[0] != 192 || src[3] != 1 {
		t.Fatalf("unexpected source field: %v, %v", src, ok)
	}

	dst, ok := v.Field(0, 12)
	if !ok || dst[3] != 2 {
		t.Fatalf("unexpected destination field: %v, %v", dst, ok)
	}

	count, ok := v.Field(0, 2)
	if !ok || binary.BigEndian.Uint64(count) != 42 {
		t.Fatalf("unexpected packet count field: %v, %v", count, ok)
	}

	if _, ok := v.Field(0, 999); ok {
		t.Fatal("expected missing field to report not found")
	}
}

func TestSetFieldInPlace(t *testing.T) {
	tpl := fixedTemplate(t)
	buf := make([]byte, 16)
	v := View{Buf: buf, Template: tpl}

	if err := v.SetField(0, 8, []byte{10, 0, 0, 1}); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 10 || buf[3] != 1 {
		t.Fatalf("expected in-place write, got %v", buf[:4])
	}

	if err := v.SetField(0, 8, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func variableTemplate(t *testing.T) *template.Template {
	s := template.NewEphemeralStore()
	key := template.Key{ObservationDomainID: 1, SourceCRC: 1, TemplateID: 257}
	fields := []wire.FieldSpec{
		{ElementID: 13, Length: wire.VariableLength}, // string
		{ElementID: 8, Length: 4},                    // sourceIPv4Address
	}
	tpl, _, err := s.Add(key, template.Data, fields, 0)
	if err != nil {
		t.Fatal(err)
	}
	return tpl
}

func TestVariableLengthFieldShortPrefix(t *testing.T) {
	tpl := variableTemplate(t)
	buf := []byte{3, 'f', 'o', 'o', 192, 0, 2, 1}

	v := View{Buf: buf, Template: tpl}
	length, err := v.Length()
	if err != nil || length != 8 {
		t.Fatalf("expected length 8, got %d, %v", length, err)
	}

	str, ok := v.Field(0, 13)
	if !ok || string(str) != "foo" {
		t.Fatalf("unexpected string field: %q, %v", str, ok)
	}

	addr, ok := v.Field(0, 8)
	if !ok || addr[3] != 1 {
		t.Fatalf("unexpected address field: %v, %v", addr, ok)
	}
}

func TestVariableLengthFieldExtendedPrefix(t *testing.T) {
	tpl := variableTemplate(t)
	content := make([]byte, 300)
	for i := range content {
		content[i] = 'a'
	}
	buf := append([]byte{0xFF, 0x01, 0x2C}, content...) // 0x012C == 300
	buf = append(buf, 192, 0, 2, 1)

	v := View{Buf: buf, Template: tpl}
	str, ok := v.Field(0, 13)
	if !ok || len(str) != 300 {
		t.Fatalf("expected 300-byte string, got %d bytes, ok=%v", len(str), ok)
	}
}

func TestRecordsWalkerStopsAtSetBoundary(t *testing.T) {
	tpl := fixedTemplate(t)
	// Two full 16-byte records plus 5 truncated bytes.
	content := make([]byte, 16+16+5)
	w := Records(content, tpl)

	n := 0
	for {
		_, ok := w.Next()
		if !ok {
			break
		}
		n++
	}
	if n != 2 {
		t.Fatalf("expected 2 complete records, walked %d", n)
	}
}

func TestRecordsWalkerDropsRecordTruncatedMidVariableField(t *testing.T) {
	tpl := variableTemplate(t)
	// One full record (prefix 3 + "foo" + 4-byte address == 8 bytes),
	// followed by a variable-length prefix declaring 50 bytes of string
	// data when only 2 bytes remain in the set.
	full := []byte{3, 'f', 'o', 'o', 192, 0, 2, 1}
	content := append(append([]byte{}, full...), 50, 'x', 'y')
	w := Records(content, tpl)

	view, ok := w.Next()
	if !ok {
		t.Fatal("expected the first, well-formed record to be returned")
	}
	if len(view.Buf) != 8 {
		t.Fatalf("expected the first record to be 8 bytes, got %d", len(view.Buf))
	}

	if _, ok := w.Next(); ok {
		t.Fatal("expected the truncated trailing record to be dropped, not returned as a partial View")
	}
	if _, ok := w.Next(); ok {
		t.Fatal("expected the walk to stay stopped on repeated calls")
	}
}
