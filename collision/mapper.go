// Package collision implements the template collision mapper, spec.md §4.4
// (C4): when archival storage mixes multiple sources under one output file,
// two sources may reuse the same template_id with incompatible field lists.
// The mapper assigns each source a conflict-free id space per observation
// domain so storage never corrupts a later read. Grounded in
// files.c's files_templates_process_template/TMAPPER_ACT_* usage pattern
// and odid.c's per-ODID bookkeeping, from original_source.
package collision

import (
	"sort"
	"sync"

	"github.com/CESNET/ipfixcol-sub004/template"
	"github.com/CESNET/ipfixcol-sub004/wire"
)

// Action is the outcome of processing one wire template against the
// mapper's current state for its observation domain, spec.md §4.4.
type Action int

const (
	// Pass: an identical template under the same id is already stored;
	// new_id equals the original id.
	Pass Action = iota
	// Rewrite: a template with the same id but different fields exists;
	// the mapper allocated a fresh id and will remember the substitution
	// for subsequent data sets from the same source.
	Rewrite
	// Duplicate: allocation of a fresh id failed because the 256..65535
	// range is exhausted for this observation domain.
	Duplicate
)

func (a Action) String() string {
	switch a {
	case Pass:
		return "pass"
	case Rewrite:
		return "rewrite"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// TemplateRecord is one entry in the mapper's view of an observation
// domain's id space, returned by Templates for storage header regeneration
// when an output window opens (spec.md §4.4).
type TemplateRecord struct {
	ID     uint16
	Kind   template.Kind
	Fields []wire.FieldSpec
}

type rewriteKey struct {
	sourceCRC  uint32
	originalID uint16
}

type entry struct {
	fields   []wire.FieldSpec
	kind     template.Kind
	ownerCRC uint32
}

// domainState is one observation domain's id space: every template
// currently assigned an id (whether under its original id or a rewritten
// one), plus the per-source rewrite memory and a cursor for fresh id
// allocation.
type domainState struct {
	byID     map[uint16]entry
	rewrites map[rewriteKey]uint16
	nextID   uint16
}

func newDomainState() *domainState {
	return &domainState{
		byID:     make(map[uint16]entry),
		rewrites: make(map[rewriteKey]uint16),
		nextID:   wire.MinDataSetID,
	}
}

// allocate finds an unused id in [wire.MinDataSetID, 65535], scanning
// forward from the last allocation point (round-robin, like the teacher's
// tmapper is understood to behave from files.c's usage). Returns ok=false
// when the whole range is occupied, signaling Duplicate to the caller.
func (d *domainState) allocate() (uint16, bool) {
	const rangeSize = 65536 - int(wire.MinDataSetID)
	for i := 0; i < rangeSize; i++ {
		id := d.nextID
		d.nextID++
		if d.nextID < wire.MinDataSetID {
			d.nextID = wire.MinDataSetID
		}
		if _, taken := d.byID[id]; !taken {
			return id, true
		}
	}
	return 0, false
}

// Mapper is the collision mapper's default implementation, one instance per
// storage stage that multiplexes sources into a shared output.
type Mapper struct {
	mu      sync.Mutex
	domains map[uint32]*domainState
}

func NewMapper() *Mapper {
	return &Mapper{domains: make(map[uint32]*domainState)}
}

func (m *Mapper) domain(odid uint32) *domainState {
	d, ok := m.domains[odid]
	if !ok {
		d = newDomainState()
		m.domains[odid] = d
	}
	return d
}

// Process implements spec.md §4.4's process contract. sourceCRC identifies
// the announcing exporter (source.CRC); templateID and fields come from the
// wire template record as admitted by the template store.
func (m *Mapper) Process(odid uint32, sourceCRC uint32, templateID uint16, kind template.Kind, fields []wire.FieldSpec) (Action, uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.domain(odid)
	rk := rewriteKey{sourceCRC: sourceCRC, originalID: templateID}

	if newID, ok := d.rewrites[rk]; ok {
		return Rewrite, newID
	}

	existing, occupied := d.byID[templateID]
	if !occupied {
		d.byID[templateID] = entry{fields: fields, kind: kind, ownerCRC: sourceCRC}
		return Pass, templateID
	}
	if template.SameFields(existing.fields, fields) {
		return Pass, templateID
	}

	newID, ok := d.allocate()
	if !ok {
		return Duplicate, 0
	}
	d.byID[newID] = entry{fields: fields, kind: kind, ownerCRC: sourceCRC}
	d.rewrites[rk] = newID
	return Rewrite, newID
}

// Templates enumerates the current templates of the given kind for odid, in
// ascending id order, for storage header regeneration when a window opens
// (spec.md §4.4).
func (m *Mapper) Templates(odid uint32, kind template.Kind) []TemplateRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.domains[odid]
	if !ok {
		return nil
	}
	out := make([]TemplateRecord, 0, len(d.byID))
	for id, e := range d.byID {
		if e.kind != kind {
			continue
		}
		out = append(out, TemplateRecord{ID: id, Kind: e.kind, Fields: e.fields})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Forget drops every id allocated to odid, used when a storage window
// rolls and the output file's template header is regenerated from scratch.
func (m *Mapper) Forget(odid uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.domains, odid)
}
