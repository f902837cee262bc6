package wire

import (
	"testing"

	"github.com/CESNET/ipfixcol-sub004/iana/version"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Version:             version.IPFIX,
		Length:              1234,
		ExportTime:          1690000000,
		SequenceNumber:      42,
		ObservationDomainID: 7,
	}
	buf := h.Encode()
	if len(buf) != HeaderLength {
		t.Fatalf("expected %d bytes, got %d", HeaderLength, len(buf))
	}
	got, err := DecodeHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDecodeHeaderTruncated(t *testing.T) {
	if _, err := DecodeHeader(make([]byte, HeaderLength-1)); err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestSetHeaderRoundTrip(t *testing.T) {
	sh := SetHeader{ID: TemplateSetID, Length: 16}
	got, err := DecodeSetHeader(sh.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got != sh {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, sh)
	}
}

func TestIsDataSet(t *testing.T) {
	cases := []struct {
		id   uint16
		want bool
	}{
		{TemplateSetID, false},
		{OptionsTemplateSetID, false},
		{255, false},
		{MinDataSetID, true},
		{512, true},
	}
	for _, c := range cases {
		if got := IsDataSet(c.id); got != c.want {
			t.Errorf("IsDataSet(%d) = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestFieldSpecRoundTripWithoutEnterprise(t *testing.T) {
	f := FieldSpec{ElementID: 8, Length: 4}
	buf := EncodeFieldSpec(f)
	if len(buf) != 4 {
		t.Fatalf("expected 4-byte encoding, got %d", len(buf))
	}
	got, n, err := DecodeFieldSpec(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 || got != f {
		t.Fatalf("got %+v (%d bytes), want %+v (4 bytes)", got, n, f)
	}
}

func TestFieldSpecRoundTripWithEnterprise(t *testing.T) {
	f := FieldSpec{ElementID: 100, Length: 8, EnterpriseNumber: 8057}
	buf := EncodeFieldSpec(f)
	if len(buf) != 8 {
		t.Fatalf("expected 8-byte encoding, got %d", len(buf))
	}
	if buf[0]&0x80 == 0 {
		t.Fatal("expected enterprise bit set in encoded id")
	}
	got, n, err := DecodeFieldSpec(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 || got != f {
		t.Fatalf("got %+v (%d bytes), want %+v (8 bytes)", got, n, f)
	}
}

func TestDecodeFieldSpecTruncated(t *testing.T) {
	if _, _, err := DecodeFieldSpec([]byte{0x00}); err == nil {
		t.Fatal("expected error for truncated specifier")
	}
	enterpriseID := []byte{0x80, 0x05, 0x00, 0x04}
	if _, _, err := DecodeFieldSpec(enterpriseID); err == nil {
		t.Fatal("expected error for truncated enterprise specifier")
	}
}

func TestFieldSpecIsVariableLength(t *testing.T) {
	f := FieldSpec{ElementID: 1, Length: VariableLength}
	if !f.IsVariableLength() {
		t.Fatal("expected variable length field to report true")
	}
	f.Length = 4
	if f.IsVariableLength() {
		t.Fatal("expected fixed length field to report false")
	}
}
