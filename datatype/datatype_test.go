package datatype

import (
	"net"
	"testing"
	"time"
)

func TestKindStringRoundTrip(t *testing.T) {
	for _, k := range allKinds {
		if got := Parse(k.String()); got != k {
			t.Errorf("Parse(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if Parse("bogus") != Unassigned {
		t.Fatal("expected unknown spelling to parse as Unassigned")
	}
}

func TestFromNumber(t *testing.T) {
	k, err := FromNumber(3)
	if err != nil || k != Unsigned32 {
		t.Fatalf("FromNumber(3) = %v, %v; want Unsigned32, nil", k, err)
	}
	if _, err := FromNumber(255); err == nil {
		t.Fatal("expected error for unassigned numeric id")
	}
}

func TestDecodeUnsignedReducedLength(t *testing.T) {
	v, err := Decode(Unsigned32, []byte{0x01, 0x02})
	if err != nil {
		t.Fatal(err)
	}
	if v.Uint() != 0x0102 {
		t.Fatalf("got %#x, want 0x102", v.Uint())
	}
}

func TestDecodeUnsignedTooWide(t *testing.T) {
	if _, err := Decode(Unsigned16, []byte{0, 0, 0}); err == nil {
		t.Fatal("expected error for over-wide unsigned encoding")
	}
}

func TestDecodeSignedNegative(t *testing.T) {
	v, err := Decode(Signed8, []byte{0xFF})
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != -1 {
		t.Fatalf("got %d, want -1", v.Int())
	}
}

func TestDecodeBoolean(t *testing.T) {
	v, err := decodeBoolean([]byte{1})
	if err != nil || !v.Bool() {
		t.Fatalf("expected true, got %v, %v", v.Bool(), err)
	}
	v, err = decodeBoolean([]byte{2})
	if err != nil || v.Bool() {
		t.Fatalf("expected false, got %v, %v", v.Bool(), err)
	}
	if _, err := decodeBoolean([]byte{3}); err == nil {
		t.Fatal("expected error for illegal boolean octet")
	}
}

func TestDecodeFloat32(t *testing.T) {
	buf := EncodeFloat32(3.5)
	v, err := Decode(Float32, buf)
	if err != nil {
		t.Fatal(err)
	}
	if v.Float() != 3.5 {
		t.Fatalf("got %v, want 3.5", v.Float())
	}
}

func TestDecodeIPv4(t *testing.T) {
	ip := net.ParseIP("192.0.2.1").To4()
	v, err := Decode(IPv4, ip)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IP().Equal(net.ParseIP("192.0.2.1")) {
		t.Fatalf("got %v", v.IP())
	}
}

func TestDecodeDateTimeSeconds(t *testing.T) {
	ts, err := time.Parse(time.RFC3339, "2024-01-01T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	buf := EncodeDateTimeSeconds(ts)
	v, err := Decode(DateTimeSeconds, buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.Time().Format("2006-01-02"); got != "2024-01-01" {
		t.Fatalf("got %s", got)
	}
}

func TestDecodeBasicListHeader(t *testing.T) {
	buf := []byte{byte(SemanticAllOf), 0x00, 0x08, 0x00, 0x04, 0xDE, 0xAD, 0xBE, 0xEF}
	h, err := DecodeBasicListHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.Semantic != SemanticAllOf || h.ElementID != 8 || h.ElementLength != 4 {
		t.Fatalf("unexpected header: %+v", h)
	}
	if len(h.Content) != 4 {
		t.Fatalf("expected 4 content bytes, got %d", len(h.Content))
	}
}

func TestDecodeSubTemplateMultiList(t *testing.T) {
	buf := []byte{byte(SemanticAllOf)}
	buf = append(buf, 0x01, 0x00, 0x00, 0x02, 0xAA, 0xBB)
	buf = append(buf, 0x01, 0x01, 0x00, 0x01, 0xCC)
	sem, entries, err := DecodeSubTemplateMultiList(buf)
	if err != nil {
		t.Fatal(err)
	}
	if sem != SemanticAllOf || len(entries) != 2 {
		t.Fatalf("got semantic %v, %d entries", sem, len(entries))
	}
	if entries[0].TemplateID != 0x0100 || len(entries[0].Content) != 2 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
}
