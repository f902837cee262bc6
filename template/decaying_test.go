package template

import (
	"testing"
	"time"
)

func TestDecayingStoreDefaultPolicyAppliesWithoutExplicitSetPolicy(t *testing.T) {
	s := NewDecayingStore(NewEphemeralStore())
	s.SetDefaultPolicy(RefreshPolicy{PacketLimit: 1})

	group := GroupKey{ObservationDomainID: 2, SourceCRC: 9}
	key := Key{ObservationDomainID: 2, SourceCRC: 9, TemplateID: 256}
	if _, _, err := s.Add(key, Data, sampleFields(), 0); err != nil {
		t.Fatal(err)
	}

	s.Tick(group, time.Now())
	if _, ok := s.Lookup(key); ok {
		t.Fatal("expected the default policy to expire the template after 1 packet")
	}
}

func TestDecayingStoreExplicitPolicyOverridesDefault(t *testing.T) {
	s := NewDecayingStore(NewEphemeralStore())
	s.SetDefaultPolicy(RefreshPolicy{PacketLimit: 1})

	group := GroupKey{ObservationDomainID: 3, SourceCRC: 11}
	s.SetPolicy(group, RefreshPolicy{PacketLimit: 5})

	key := Key{ObservationDomainID: 3, SourceCRC: 11, TemplateID: 256}
	if _, _, err := s.Add(key, Data, sampleFields(), 0); err != nil {
		t.Fatal(err)
	}

	s.Tick(group, time.Now())
	if _, ok := s.Lookup(key); !ok {
		t.Fatal("expected the explicit per-group policy (limit 5) to take precedence over the default (limit 1)")
	}
}

func TestDecayingStoreWithdrawAllForSourceClearsEveryObservationDomain(t *testing.T) {
	s := NewDecayingStore(NewEphemeralStore())
	s.SetDefaultPolicy(RefreshPolicy{Timeout: time.Hour})

	keyA := Key{ObservationDomainID: 1, SourceCRC: 42, TemplateID: 256}
	keyB := Key{ObservationDomainID: 2, SourceCRC: 42, TemplateID: 300}
	if _, _, err := s.Add(keyA, Data, sampleFields(), 0); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Add(keyB, Data, sampleFields(), 0); err != nil {
		t.Fatal(err)
	}

	s.WithdrawAllForSource(42)

	if _, ok := s.Lookup(keyA); ok {
		t.Fatal("expected keyA's template to be withdrawn")
	}
	if _, ok := s.Lookup(keyB); ok {
		t.Fatal("expected keyB's template (different ODID, same source) to be withdrawn too")
	}
}

func TestDecayingStoreTickWallClockExpiry(t *testing.T) {
	s := NewDecayingStore(NewEphemeralStore())
	group := GroupKey{ObservationDomainID: 4, SourceCRC: 13}
	s.SetPolicy(group, RefreshPolicy{Timeout: time.Minute})

	key := Key{ObservationDomainID: 4, SourceCRC: 13, TemplateID: 256}
	if _, _, err := s.Add(key, Data, sampleFields(), 0); err != nil {
		t.Fatal(err)
	}

	restore := templateNow
	defer func() { templateNow = restore }()

	base := time.Now()
	templateNow = func() time.Time { return base }
	s.Tick(group, base)
	if _, ok := s.Lookup(key); !ok {
		t.Fatal("expected the template to still be live well before its timeout")
	}

	templateNow = func() time.Time { return base.Add(2 * time.Minute) }
	s.Tick(group, base.Add(2*time.Minute))
	if _, ok := s.Lookup(key); ok {
		t.Fatal("expected the template to expire once its wall-clock timeout elapsed")
	}
}
