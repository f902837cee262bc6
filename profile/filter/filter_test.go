package filter

import (
	"testing"

	"github.com/CESNET/ipfixcol-sub004/record"
	"github.com/CESNET/ipfixcol-sub004/source"
	"github.com/CESNET/ipfixcol-sub004/template"
	"github.com/CESNET/ipfixcol-sub004/wire"
)

func testRecord(t *testing.T) record.View {
	t.Helper()
	s := template.NewEphemeralStore()
	key := template.Key{ObservationDomainID: 1, SourceCRC: 1, TemplateID: 256}
	fields := []wire.FieldSpec{
		{ElementID: 8, Length: 4},  // sourceIPv4Address
		{ElementID: 4, Length: 1},  // protocolIdentifier
	}
	tpl, _, err := s.Add(key, template.Data, fields, 0)
	if err != nil {
		t.Fatal(err)
	}
	buf := []byte{192, 168, 1, 1, 6}
	return record.View{Buf: buf, Template: tpl}
}

func TestParseExists(t *testing.T) {
	expr, err := Parse("EXISTS sourceIPv4Address", nil)
	if err != nil {
		t.Fatal(err)
	}
	// Without a dict, field resolution falls back to name-only and won't
	// match record fields by IE id; this exercises the parser path only.
	_ = expr
}

func TestEvaluateCompareNumericField(t *testing.T) {
	ctx := Context{Record: testRecord(t)}
	f := Field{Name: "protocolIdentifier", ElementID: 4}
	expr := Compare{Field: f, Op: Eq, Value: Value{Kind: ValNumber, Number: 6}}
	if !Evaluate(expr, ctx) {
		t.Fatal("expected protocolIdentifier = 6 to match")
	}
	expr2 := Compare{Field: f, Op: Ne, Value: Value{Kind: ValNumber, Number: 6}}
	if Evaluate(expr2, ctx) {
		t.Fatal("expected protocolIdentifier != 6 to not match")
	}
}

func TestEvaluateMissingFieldUnderNotEqual(t *testing.T) {
	ctx := Context{Record: testRecord(t)}
	f := Field{Name: "bgpSourceAsNumber", ElementID: 16}
	expr := Compare{Field: f, Op: Ne, Value: Value{Kind: ValNumber, Number: 1}}
	if !Evaluate(expr, ctx) {
		t.Fatal("expected a missing field to satisfy !=")
	}
	expr2 := Compare{Field: f, Op: Eq, Value: Value{Kind: ValNumber, Number: 1}}
	if Evaluate(expr2, ctx) {
		t.Fatal("expected a missing field to fail =")
	}
}

func TestEvaluateCIDR(t *testing.T) {
	ctx := Context{Record: testRecord(t)}
	f := Field{Name: "sourceIPv4Address", ElementID: 8}
	expr := CIDR{Field: f, Prefix: "192.168.0.0/16"}
	if !Evaluate(expr, ctx) {
		t.Fatal("expected 192.168.1.1 to be within 192.168.0.0/16")
	}
	expr2 := CIDR{Field: f, Prefix: "10.0.0.0/8"}
	if Evaluate(expr2, ctx) {
		t.Fatal("expected 192.168.1.1 to not be within 10.0.0.0/8")
	}
}

func TestEvaluateAndOrNot(t *testing.T) {
	ctx := Context{Record: testRecord(t)}
	f := Field{Name: "protocolIdentifier", ElementID: 4}
	isTCP := Compare{Field: f, Op: Eq, Value: Value{Kind: ValNumber, Number: 6}}
	isUDP := Compare{Field: f, Op: Eq, Value: Value{Kind: ValNumber, Number: 17}}

	if !Evaluate(Or{Left: isTCP, Right: isUDP}, ctx) {
		t.Fatal("expected TCP-or-UDP to match a TCP record")
	}
	if Evaluate(And{Left: isTCP, Right: isUDP}, ctx) {
		t.Fatal("expected TCP-and-UDP to not match")
	}
	if !Evaluate(Not{Inner: isUDP}, ctx) {
		t.Fatal("expected NOT UDP to match a TCP record")
	}
}

func TestEvaluateSyntheticODID(t *testing.T) {
	ctx := Context{Record: testRecord(t), ODID: 7, Source: source.Info{Port: 2055}}
	expr := Compare{Field: Field{IsSynthetic: true, Synthetic: SynODID}, Op: Eq, Value: Value{Kind: ValNumber, Number: 7}}
	if !Evaluate(expr, ctx) {
		t.Fatal("expected synthetic ODID field to match the context's ODID")
	}
}

func TestParseComplexExpression(t *testing.T) {
	expr, err := Parse(`protocolIdentifier = 6 AND (sourceIPv4Address IN 192.168.0.0/16 OR NOT EXISTS bgpSourceAsNumber)`, nil)
	if err != nil {
		t.Fatal(err)
	}
	and, ok := expr.(And)
	if !ok {
		t.Fatalf("expected top-level And, got %T", expr)
	}
	if _, ok := and.Left.(Compare); !ok {
		t.Fatalf("expected left side to be a Compare, got %T", and.Left)
	}
	if _, ok := and.Right.(Or); !ok {
		t.Fatalf("expected right side to be an Or, got %T", and.Right)
	}
}
