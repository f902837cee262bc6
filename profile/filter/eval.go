package filter

import (
	"encoding/binary"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/CESNET/ipfixcol-sub004/record"
	"github.com/CESNET/ipfixcol-sub004/source"
)

// Context carries the per-record data an Expr is evaluated against: the
// decoded record view (a nil-template record has no IE fields, so every IE
// operand counts as missing) and the owning message's source/header info for the synthetic
// fields.
type Context struct {
	Record record.View
	ODID   uint32
	Source source.Info
}

// Evaluate walks expr against ctx, spec.md §4.6: "For each record, evaluate
// every channel's filter... A missing IE returns false except under the ≠
// operator which returns true."
func Evaluate(expr Expr, ctx Context) bool {
	switch e := expr.(type) {
	case And:
		return Evaluate(e.Left, ctx) && Evaluate(e.Right, ctx)
	case Or:
		return Evaluate(e.Left, ctx) || Evaluate(e.Right, ctx)
	case Not:
		return !Evaluate(e.Inner, ctx)
	case Exists:
		_, ok := lookupBytes(e.Field, ctx)
		return ok
	case Compare:
		return evalCompare(e, ctx)
	case Match:
		return evalMatch(e, ctx)
	case CIDR:
		return evalCIDR(e, ctx)
	default:
		return false
	}
}

// lookupBytes resolves a field operand to its raw bytes, either from the
// record (IE fields) or from the message's source info (synthetic fields).
func lookupBytes(f Field, ctx Context) ([]byte, bool) {
	if f.IsSynthetic {
		return lookupSynthetic(f.Synthetic, ctx)
	}
	if ctx.Record.Template == nil {
		return nil, false
	}
	return ctx.Record.Field(f.EnterpriseNumber, f.ElementID)
}

func lookupSynthetic(f SyntheticField, ctx Context) ([]byte, bool) {
	switch f {
	case SynODID:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], ctx.ODID)
		return b[:], true
	case SynSrcAddr:
		if ctx.Source.Addr == nil {
			return nil, false
		}
		return ctx.Source.Addr, true
	case SynSrcPort:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], ctx.Source.Port)
		return b[:], true
	case SynDstAddr, SynDstPort:
		// The collector observes only the exporter's source address;
		// destination fields are carried per-record as ordinary IEs
		// (destinationIPv4Address/destinationTransportPort) rather than
		// synthesized from input_info. Treated as absent here.
		return nil, false
	default:
		return nil, false
	}
}

func evalCompare(e Compare, ctx Context) bool {
	raw, ok := lookupBytes(e.Field, ctx)
	if !ok {
		return e.Op == Ne
	}

	switch e.Value.Kind {
	case ValNumber:
		n := bytesToInt64(raw)
		return compareInt64(n, e.Value.Number, e.Op)
	case ValTimestamp:
		n := bytesToInt64(raw)
		return compareInt64(n, e.Value.Millis, e.Op)
	case ValIPv4, ValIPv6:
		return compareBytes(raw, e.Value.IP, e.Op)
	default:
		return compareBytes(raw, []byte(e.Value.Text), e.Op)
	}
}

func evalMatch(e Match, ctx Context) bool {
	raw, ok := lookupBytes(e.Field, ctx)
	if !ok {
		return false
	}
	text := string(raw)
	if e.Regex {
		re, err := regexp.Compile(e.Value)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return strings.Contains(text, e.Value)
}

func evalCIDR(e CIDR, ctx Context) bool {
	raw, ok := lookupBytes(e.Field, ctx)
	if !ok {
		return false
	}
	_, network, err := net.ParseCIDR(e.Prefix)
	if err != nil {
		return false
	}
	return network.Contains(net.IP(raw))
}

func bytesToInt64(b []byte) int64 {
	var padded [8]byte
	if len(b) > 8 {
		b = b[len(b)-8:]
	}
	copy(padded[8-len(b):], b)
	return int64(binary.BigEndian.Uint64(padded[:]))
}

func compareInt64(a, b int64, op Op) bool {
	switch op {
	case Eq:
		return a == b
	case Ne:
		return a != b
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	default:
		return false
	}
}

func compareBytes(a, b []byte, op Op) bool {
	c := compareBytesLex(a, b)
	switch op {
	case Eq:
		return c == 0
	case Ne:
		return c != 0
	case Lt:
		return c < 0
	case Le:
		return c <= 0
	case Gt:
		return c > 0
	case Ge:
		return c >= 0
	default:
		return false
	}
}

func compareBytesLex(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func parseIP(s string) []byte {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip.To16()
}

func parseTimestamp(s string) (int64, bool) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}
