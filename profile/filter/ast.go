// Package filter implements the channel filter expression language of
// spec.md §4.6: a boolean tree over IE comparisons, existence checks,
// substring/regex matches, and CIDR membership, plus the four synthetic
// header fields. Grounded in filter.c's node evaluator (OP_EQUAL,
// OP_NOT_EQUAL and friends walking a parsed expression tree); the original's
// flex/bison scanner is replaced by a small hand-written recursive-descent
// parser, the idiomatic Go approach the example pack uses nowhere else but
// that fits a single-package, dependency-free grammar this size.
package filter

// Op is a comparison operator, spec.md §4.6: "op ∈ {=, ≠, <, ≤, >, ≥}".
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Field identifies a filter operand: either an IPFIX information element
// (resolved through the element dictionary) or one of the synthetic header
// fields spec.md §4.6 names.
type Field struct {
	// IsSynthetic is true for {ODID, SrcAddr, SrcPort, DstAddr, DstPort}.
	IsSynthetic bool
	Synthetic   SyntheticField

	// IE lookup, used when IsSynthetic is false. Name is the raw token as
	// written in the filter ("<ent>:<name>" or a bare name); EnterpriseNumber
	// and ElementID are resolved once at parse time via the element
	// dictionary and cached here to avoid a lookup per record.
	Name             string
	EnterpriseNumber uint32
	ElementID        uint16
}

type SyntheticField int

const (
	SynODID SyntheticField = iota
	SynSrcAddr
	SynSrcPort
	SynDstAddr
	SynDstPort
)

// Expr is the filter expression tree. Concrete node types implement it.
type Expr interface {
	isExpr()
}

type And struct{ Left, Right Expr }
type Or struct{ Left, Right Expr }
type Not struct{ Inner Expr }

// Exists reports whether an IE is present in the record at all, spec.md
// §4.6: "EXISTS <ie>".
type Exists struct{ Field Field }

// Compare evaluates a relational operator between a field and a literal
// value.
type Compare struct {
	Field Field
	Op    Op
	Value Value
}

// Match evaluates a substring or regular-expression test against a textual
// field.
type Match struct {
	Field Field
	Regex bool
	Value string
}

// CIDR evaluates IPv4/IPv6 prefix membership.
type CIDR struct {
	Field  Field
	Prefix string
}

func (And) isExpr()     {}
func (Or) isExpr()      {}
func (Not) isExpr()     {}
func (Exists) isExpr()  {}
func (Compare) isExpr() {}
func (Match) isExpr()   {}
func (CIDR) isExpr()    {}

// Value is a parsed literal operand, spec.md §4.6: "parsed as number, hex,
// IPv4, IPv6, prefix, timestamp, quoted string, or regex."
type ValueKind int

const (
	ValNumber ValueKind = iota
	ValString
	ValIPv4
	ValIPv6
	ValTimestamp
)

type Value struct {
	Kind   ValueKind
	Number int64
	Text   string
	IP     []byte
	Millis int64
}
