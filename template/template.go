// Package template implements the template store, spec.md §4.1 (C1): the
// stateful decoder context keyed by (observation domain, source, template
// id) that every data record decode depends on. It is grounded in the
// teacher's ephemeral_cache.go/decaying_cache.go (cache shape) and in
// template_manager.c's tm_key_create (the (odid, crc, id) key).
package template

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/CESNET/ipfixcol-sub004/wire"
)

// Kind distinguishes a data template from an options template, spec.md §3.
type Kind int

const (
	Data Kind = iota
	Options
)

func (k Kind) String() string {
	if k == Options {
		return "options"
	}
	return "data"
}

// Key is the template store's addressing tuple, spec.md §3: "The source_crc
// distinguishes multiple exporters sharing an ODID within one collecting
// process."
type Key struct {
	ObservationDomainID uint32
	SourceCRC           uint32
	TemplateID          uint16
}

// GroupKey is the (ODID, source) granularity at which the store serializes
// writes and performs bulk withdrawal (spec.md §3, §5).
type GroupKey struct {
	ObservationDomainID uint32
	SourceCRC           uint32
}

func (k Key) Group() GroupKey {
	return GroupKey{ObservationDomainID: k.ObservationDomainID, SourceCRC: k.SourceCRC}
}

// hasVariableBit is OR'd into FixedPartLength to flag that at least one
// field is variable-length and FixedPartLength is therefore a minimum,
// not an exact, record length (spec.md §4.1, "sets the has variable bit").
const hasVariableBit = 1 << 31

// Template is immutable once admitted, per spec.md §3; the only mutable
// state after construction is the reference count and the withdrawn flag,
// both handled through atomics so readers never need to lock.
type Template struct {
	Key    Key
	Kind   Kind
	Fields []wire.FieldSpec

	// ScopeFieldCount is the number of leading scope fields in an options
	// template; always >= 1 for Kind == Options (spec.md §3, §4.1).
	ScopeFieldCount int

	fixedPartLength uint32 // high bit is hasVariableBit

	FirstSeenTime    time.Time
	LastRefreshTime  time.Time

	offsets offsetCache

	refCount  int32
	withdrawn int32 // atomic bool
}

// HasVariableLength reports whether any field in the template is
// variable-length, making FixedPartLength a lower bound rather than an
// exact record size.
func (t *Template) HasVariableLength() bool {
	return t.fixedPartLength&hasVariableBit != 0
}

// FixedPartLength returns the sum of the template's fixed-length fields.
// When HasVariableLength is true this is a minimum record length, not the
// actual one; the record walker must walk the record to find the true
// length (spec.md §4.1, §4.3).
func (t *Template) FixedPartLength() uint32 {
	return t.fixedPartLength &^ hasVariableBit
}

// FieldCount returns the number of field specifiers in the template.
func (t *Template) FieldCount() int {
	return len(t.Fields)
}

func (t *Template) RefCount() int32 {
	return atomic.LoadInt32(&t.refCount)
}

func (t *Template) IncRef() {
	atomic.AddInt32(&t.refCount, 1)
}

// DecRef decrements the reference count and reports whether the template
// has reached zero references while withdrawn, i.e. should be freed by the
// caller (spec.md §3, "freed only when no message references it and it has
// been withdrawn or superseded").
func (t *Template) DecRef() (shouldFree bool) {
	n := atomic.AddInt32(&t.refCount, -1)
	if n < 0 {
		panic(fmt.Sprintf("template: refcount underflow for key %+v", t.Key))
	}
	return n == 0 && t.IsWithdrawn()
}

func (t *Template) IsWithdrawn() bool {
	return atomic.LoadInt32(&t.withdrawn) == 1
}

func (t *Template) markWithdrawn() {
	atomic.StoreInt32(&t.withdrawn, 1)
}

// SameFields reports whether two templates carry byte-identical field
// lists, used by Add to distinguish a harmless re-announcement from a
// colliding redefinition (spec.md §4.1).
func SameFields(a, b []wire.FieldSpec) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var (
	ErrInvalidTemplate = errors.New("template: field count inconsistent with set length")
	ErrInvalidScope    = errors.New("template: options template has zero scope fields")
	ErrNotFound        = errors.New("template: not found")
)

// New builds an admitted Template from field specifiers the caller has
// already decoded from the wire. It rejects an options template with no
// scope field (ErrInvalidScope). spec.md §4.1's InvalidTemplate check on the
// enclosing set's length is done by ValidateFieldCount, which the caller
// runs before decoding the specifiers.
func New(key Key, kind Kind, fields []wire.FieldSpec, scopeFieldCount int, now time.Time) (*Template, error) {
	if kind == Options && scopeFieldCount < 1 {
		return nil, ErrInvalidScope
	}

	var sum uint32
	hasVariable := false
	for _, f := range fields {
		if f.IsVariableLength() {
			hasVariable = true
			continue
		}
		sum += uint32(f.Length)
	}
	if hasVariable {
		sum |= hasVariableBit
	}

	t := &Template{
		Key:             key,
		Kind:            kind,
		Fields:          fields,
		ScopeFieldCount: scopeFieldCount,
		fixedPartLength: sum,
		FirstSeenTime:   now,
		LastRefreshTime: now,
		refCount:        0,
	}
	t.offsets = buildOffsetCache(fields)
	return t, nil
}

// ValidateFieldCount enforces spec.md §4.1: "Rejects template records whose
// declared field count implies more bytes than the enclosing set length."
// For an options template, fieldCount already includes its scopeFieldCount
// scope fields, so only fieldCount sizes the bound.
func ValidateFieldCount(fieldCount int, scopeFieldCount int, setRemaining int) error {
	need := fieldCount * 4 // optimistic lower bound, enterprise PENs add more
	if need > setRemaining {
		return ErrInvalidTemplate
	}
	return nil
}
