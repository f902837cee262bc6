package template

import (
	"sync"
	"time"

	"github.com/CESNET/ipfixcol-sub004/wire"
)

// RefreshPolicy is the UDP-source template lifetime policy of spec.md
// §6.7: a template expires after Timeout wall-clock time, or after
// PacketLimit packets have been received on its source, whichever comes
// first. A zero value in either field disables that bound.
type RefreshPolicy struct {
	Timeout     time.Duration
	PacketLimit uint32
}

func (p RefreshPolicy) enabled() bool {
	return p.Timeout > 0 || p.PacketLimit > 0
}

// DecayingStore wraps a Store and expires templates under a RefreshPolicy,
// grounded in the teacher's DecayingEphemeralCache. Templates for sources
// whose transport report this is unreliable (UDP has no disconnect signal)
// and must therefore self-expire, per spec.md §6.7's "UDP-source template
// refresh policy".
type DecayingStore struct {
	inner Store

	mu       sync.Mutex
	policies map[GroupKey]RefreshPolicy
	counters map[GroupKey]uint32
	deadline map[Key]time.Time
	admitted map[Key]uint32
	def      RefreshPolicy
}

func NewDecayingStore(inner Store) *DecayingStore {
	return &DecayingStore{
		inner:    inner,
		policies: make(map[GroupKey]RefreshPolicy),
		counters: make(map[GroupKey]uint32),
		deadline: make(map[Key]time.Time),
		admitted: make(map[Key]uint32),
	}
}

// SetPolicy configures the refresh policy for one source group, taking
// precedence over SetDefaultPolicy for that group. Nothing in this module
// calls it outside tests; collector.New configures only the default policy.
func (s *DecayingStore) SetPolicy(group GroupKey, policy RefreshPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[group] = policy
}

// SetDefaultPolicy configures the policy applied to any source group with no
// explicit SetPolicy call, so a collector can apply one configured policy to
// every source without enumerating groups in advance.
func (s *DecayingStore) SetDefaultPolicy(policy RefreshPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.def = policy
}

func (s *DecayingStore) policyFor(group GroupKey) (RefreshPolicy, bool) {
	if policy, ok := s.policies[group]; ok {
		return policy, true
	}
	if s.def.enabled() {
		return s.def, true
	}
	return RefreshPolicy{}, false
}

// Tick advances the packet counter for group, expiring any template that
// has now exceeded its packet-count or wall-clock bound.
func (s *DecayingStore) Tick(group GroupKey, now time.Time) {
	s.mu.Lock()
	policy, ok := s.policyFor(group)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.counters[group]++
	count := s.counters[group]

	var expired []Key
	for key, deadline := range s.deadline {
		if key.Group() != group {
			continue
		}
		if policy.Timeout > 0 && now.After(deadline) {
			expired = append(expired, key)
			continue
		}
		if policy.PacketLimit > 0 && count-s.admitted[key] >= policy.PacketLimit {
			expired = append(expired, key)
		}
	}
	s.mu.Unlock()

	for _, key := range expired {
		s.Withdraw(key)
	}
}

func (s *DecayingStore) Lookup(key Key) (*Template, bool) {
	return s.inner.Lookup(key)
}

func (s *DecayingStore) Add(key Key, kind Kind, fields []wire.FieldSpec, scopeFieldCount int) (*Template, bool, error) {
	tpl, collided, err := s.inner.Add(key, kind, fields, scopeFieldCount)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	policy, ok := s.policyFor(key.Group())
	if ok {
		if policy.Timeout > 0 {
			s.deadline[key] = templateNow().Add(policy.Timeout)
		}
		s.admitted[key] = s.counters[key.Group()]
	}
	s.mu.Unlock()

	return tpl, collided, nil
}

func (s *DecayingStore) Withdraw(key Key) {
	s.mu.Lock()
	delete(s.deadline, key)
	delete(s.admitted, key)
	s.mu.Unlock()
	s.inner.Withdraw(key)
}

func (s *DecayingStore) WithdrawAll(group GroupKey) {
	s.mu.Lock()
	for key := range s.deadline {
		if key.Group() == group {
			delete(s.deadline, key)
			delete(s.admitted, key)
		}
	}
	delete(s.counters, group)
	s.mu.Unlock()
	s.inner.WithdrawAll(group)
}

func (s *DecayingStore) WithdrawAllForSource(sourceCRC uint32) {
	s.mu.Lock()
	for key := range s.deadline {
		if key.SourceCRC == sourceCRC {
			delete(s.deadline, key)
			delete(s.admitted, key)
		}
	}
	for group := range s.counters {
		if group.SourceCRC == sourceCRC {
			delete(s.counters, group)
		}
	}
	s.mu.Unlock()
	s.inner.WithdrawAllForSource(sourceCRC)
}

func (s *DecayingStore) IncRef(tpl *Template) { s.inner.IncRef(tpl) }
func (s *DecayingStore) DecRef(tpl *Template) { s.inner.DecRef(tpl) }

var _ Store = (*DecayingStore)(nil)
