package template

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/CESNET/ipfixcol-sub004/obs"
	"github.com/CESNET/ipfixcol-sub004/wire"
)

func odidLabel(odid uint32) string {
	return strconv.FormatUint(uint64(odid), 10)
}

// Store is the template store contract of spec.md §4.1.
type Store interface {
	// Lookup returns the template registered under key, if any and not
	// withdrawn.
	Lookup(key Key) (*Template, bool)

	// Add parses and admits a template. If an identical (same key, same
	// field list) template already exists, the existing reference is
	// returned unchanged and collided is false. If the key exists with a
	// different field list, the old template is marked withdrawn (freed at
	// ref-count zero) and the new one supersedes it; collided is true.
	Add(key Key, kind Kind, fields []wire.FieldSpec, scopeFieldCount int) (tpl *Template, collided bool, err error)

	// Withdraw marks a single template withdrawn.
	Withdraw(key Key)

	// WithdrawAll bulk-withdraws every template in group, for a
	// disconnected source.
	WithdrawAll(group GroupKey)

	// WithdrawAllForSource bulk-withdraws every template for every
	// observation domain a given source has ever used, spec.md §8's source
	// close scenario: a closing exporter's source_crc is known before its
	// set of observation domain IDs is.
	WithdrawAllForSource(sourceCRC uint32)

	IncRef(tpl *Template)
	DecRef(tpl *Template)
}

// groupState is the per-(ODID, source) bucket spec.md §5 describes: "A
// per-group (ODID, src_crc) mutex guards writes; readers use the reference
// count to extend the lifetime of any template they hold."
type groupState struct {
	mu        sync.Mutex
	templates map[uint16]*Template
}

// EphemeralStore is the default in-memory Store, grounded in the teacher's
// EphemeralCache: a plain map guarded by locks, no expiry. It is the right
// choice for TCP/SCTP sources and for any source whose lifetime management
// is handled upstream; UDP sources additionally wrap it in a DecayingStore
// (decaying.go) per spec.md §6.7's template_life_time settings.
type EphemeralStore struct {
	mu     sync.RWMutex
	groups map[GroupKey]*groupState

	// freed is called whenever DecRef observes a template drop to zero
	// references while withdrawn; the store itself holds no reference, so
	// this is purely a notification hook for callers that want to log or
	// meter frees.
	freed func(*Template)
}

func NewEphemeralStore() *EphemeralStore {
	return &EphemeralStore{
		groups: make(map[GroupKey]*groupState),
	}
}

// OnFree registers a callback invoked when a template is fully released.
func (s *EphemeralStore) OnFree(fn func(*Template)) {
	s.freed = fn
}

func (s *EphemeralStore) group(key GroupKey, create bool) *groupState {
	s.mu.RLock()
	g, ok := s.groups[key]
	s.mu.RUnlock()
	if ok || !create {
		return g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok = s.groups[key]; ok {
		return g
	}
	g = &groupState{templates: make(map[uint16]*Template)}
	s.groups[key] = g
	return g
}

func (s *EphemeralStore) Lookup(key Key) (*Template, bool) {
	g := s.group(key.Group(), false)
	if g == nil {
		return nil, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.templates[key.TemplateID]
	if !ok || t.IsWithdrawn() {
		return nil, false
	}
	return t, true
}

func (s *EphemeralStore) Add(key Key, kind Kind, fields []wire.FieldSpec, scopeFieldCount int) (*Template, bool, error) {
	g := s.group(key.Group(), true)

	g.mu.Lock()
	defer g.mu.Unlock()

	now := templateNow()

	if existing, ok := g.templates[key.TemplateID]; ok && !existing.IsWithdrawn() {
		if SameFields(existing.Fields, fields) {
			existing.LastRefreshTime = now
			return existing, false, nil
		}
		existing.markWithdrawn()
		obs.TemplatesActive.WithLabelValues(odidLabel(key.ObservationDomainID)).Dec()
		if existing.RefCount() == 0 && s.freed != nil {
			s.freed(existing)
		}
		obs.TemplateCollisionsTotal.Inc()

		tpl, err := New(key, kind, fields, scopeFieldCount, now)
		if err != nil {
			return nil, false, err
		}
		g.templates[key.TemplateID] = tpl
		obs.TemplatesActive.WithLabelValues(odidLabel(key.ObservationDomainID)).Inc()
		return tpl, true, nil
	}

	tpl, err := New(key, kind, fields, scopeFieldCount, now)
	if err != nil {
		return nil, false, err
	}
	g.templates[key.TemplateID] = tpl
	obs.TemplatesActive.WithLabelValues(odidLabel(key.ObservationDomainID)).Inc()
	return tpl, false, nil
}

func (s *EphemeralStore) Withdraw(key Key) {
	g := s.group(key.Group(), false)
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.templates[key.TemplateID]; ok && !t.IsWithdrawn() {
		t.markWithdrawn()
		obs.TemplateWithdrawalsTotal.Inc()
		obs.TemplatesActive.WithLabelValues(odidLabel(key.ObservationDomainID)).Dec()
		if t.RefCount() == 0 && s.freed != nil {
			s.freed(t)
		}
	}
}

func (s *EphemeralStore) WithdrawAll(group GroupKey) {
	g := s.group(group, false)
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range g.templates {
		if t.IsWithdrawn() {
			continue
		}
		t.markWithdrawn()
		obs.TemplateWithdrawalsTotal.Inc()
		obs.TemplatesActive.WithLabelValues(odidLabel(group.ObservationDomainID)).Dec()
		if t.RefCount() == 0 && s.freed != nil {
			s.freed(t)
		}
	}
}

func (s *EphemeralStore) WithdrawAllForSource(sourceCRC uint32) {
	s.mu.RLock()
	var groups []GroupKey
	for g := range s.groups {
		if g.SourceCRC == sourceCRC {
			groups = append(groups, g)
		}
	}
	s.mu.RUnlock()

	for _, g := range groups {
		s.WithdrawAll(g)
	}
}

func (s *EphemeralStore) IncRef(tpl *Template) {
	tpl.IncRef()
}

func (s *EphemeralStore) DecRef(tpl *Template) {
	if tpl.DecRef() && s.freed != nil {
		s.freed(tpl)
	}
}

var _ Store = (*EphemeralStore)(nil)

// templateNow exists so tests can deterministically stand in for wall-clock
// time without the package reaching for time.Now() in more than one place.
var templateNow = time.Now

func templateNotFound(odid uint32, tid uint16) error {
	return fmt.Errorf("%w: odid=%d template_id=%d", ErrNotFound, odid, tid)
}
