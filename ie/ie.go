// Package ie implements the element-dictionary interface of spec.md §6.4: a
// read-only, concurrency-safe lookup of information element definitions by
// id or by name. It is grounded in the teacher's information_element.go and
// field_cache.go, adapted from the teacher's FieldCache/FieldBuilder
// indirection (tied to its io.Reader DataType decode path) to a plain
// struct registry, since decoding is now delegated to the datatype package.
package ie

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/CESNET/ipfixcol-sub004/datatype"
	"github.com/CESNET/ipfixcol-sub004/iana/semantics"
	"github.com/CESNET/ipfixcol-sub004/iana/status"
)

// Key identifies an information element by enterprise number and element
// id, mirroring the teacher's FieldKey.
type Key struct {
	EnterpriseNumber uint32
	ID               uint16
}

const keySeparator = ":"

func (k Key) String() string {
	return fmt.Sprintf("%d%s%d", k.EnterpriseNumber, keySeparator, k.ID)
}

// ElementDef is the element definition spec.md §6.4 names: id, enterprise
// number, name, abstract data type, and semantic.
type ElementDef struct {
	ID               uint16
	EnterpriseNumber uint32
	Name             string
	Type             datatype.Kind
	Semantic         semantics.Semantic
	Status           status.Status
	Description      string
	Units            string
}

func (e ElementDef) Key() Key {
	return Key{EnterpriseNumber: e.EnterpriseNumber, ID: e.ID}
}

// Result is the by-name lookup response: the number of definitions sharing
// the queried name, and the first match.
type Result struct {
	Count int
	First ElementDef
}

// ErrNotFound is the error for an unknown element key. Dict.ByID does not
// return it; ByID reports an unknown key through its bool result.
var ErrNotFound = fmt.Errorf("ie: element not found")

// Dict is the read-only element-dictionary contract of spec.md §6.4.
type Dict interface {
	ByID(elementID uint16, enterpriseNumber uint32) (ElementDef, bool)
	ByName(name string, caseSensitive bool) Result
}

// Registry is the default in-memory Dict implementation, grounded in the
// teacher's EphemeralFieldCache. Reads take only the shared read lock of
// an RWMutex, so concurrent readers do not block each other; writes
// (Add/Remove) are rare, driven by the IANA bootstrap set plus any
// enterprise-specific elements loaded from configuration.
type Registry struct {
	mu      sync.RWMutex
	byKey   map[Key]ElementDef
	byName  map[string][]ElementDef
	byNameL map[string][]ElementDef // lower-cased index for case-insensitive lookup
}

func NewRegistry() *Registry {
	return &Registry{
		byKey:   make(map[Key]ElementDef),
		byName:  make(map[string][]ElementDef),
		byNameL: make(map[string][]ElementDef),
	}
}

func (r *Registry) Add(def ElementDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[def.Key()] = def
	r.byName[def.Name] = append(r.byName[def.Name], def)
	lower := strings.ToLower(def.Name)
	r.byNameL[lower] = append(r.byNameL[lower], def)
}

func (r *Registry) Remove(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.byKey[key]
	if !ok {
		return
	}
	delete(r.byKey, key)
	r.byName[def.Name] = removeDef(r.byName[def.Name], key)
	lower := strings.ToLower(def.Name)
	r.byNameL[lower] = removeDef(r.byNameL[lower], key)
}

func removeDef(defs []ElementDef, key Key) []ElementDef {
	out := defs[:0]
	for _, d := range defs {
		if d.Key() != key {
			out = append(out, d)
		}
	}
	return out
}

func (r *Registry) ByID(elementID uint16, enterpriseNumber uint32) (ElementDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byKey[Key{EnterpriseNumber: enterpriseNumber, ID: elementID}]
	return def, ok
}

// ByName resolves a name, optionally prefixed "<enterprise>:<name>" to
// restrict the search to one enterprise, per spec.md §6.4.
func (r *Registry) ByName(name string, caseSensitive bool) Result {
	name, enterpriseFilter, hasFilter := splitEnterprisePrefix(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []ElementDef
	if caseSensitive {
		candidates = r.byName[name]
	} else {
		candidates = r.byNameL[strings.ToLower(name)]
	}
	if !hasFilter {
		if len(candidates) == 0 {
			return Result{}
		}
		return Result{Count: len(candidates), First: candidates[0]}
	}

	var filtered []ElementDef
	for _, d := range candidates {
		if d.EnterpriseNumber == enterpriseFilter {
			filtered = append(filtered, d)
		}
	}
	if len(filtered) == 0 {
		return Result{}
	}
	return Result{Count: len(filtered), First: filtered[0]}
}

func splitEnterprisePrefix(name string) (plain string, enterprise uint32, ok bool) {
	idx := strings.IndexByte(name, ':')
	if idx < 0 {
		return name, 0, false
	}
	ent, err := strconv.ParseUint(name[:idx], 10, 32)
	if err != nil {
		return name, 0, false
	}
	return name[idx+1:], uint32(ent), true
}

var _ Dict = (*Registry)(nil)
