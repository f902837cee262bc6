package template

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/CESNET/ipfixcol-sub004/wire"
)

func sampleFields() []wire.FieldSpec {
	return []wire.FieldSpec{
		{ElementID: 8, Length: 4},  // sourceIPv4Address
		{ElementID: 12, Length: 4}, // destinationIPv4Address
		{ElementID: 2, Length: 8},  // packetDeltaCount
	}
}

func TestAddAndLookup(t *testing.T) {
	s := NewEphemeralStore()
	key := Key{ObservationDomainID: 1, SourceCRC: 42, TemplateID: 256}

	tpl, collided, err := s.Add(key, Data, sampleFields(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if collided {
		t.Fatal("expected no collision on first admission")
	}
	if tpl.FixedPartLength() != 16 {
		t.Fatalf("expected fixed part length 16, got %d", tpl.FixedPartLength())
	}

	got, ok := s.Lookup(key)
	if !ok || got != tpl {
		t.Fatal("expected lookup to find the admitted template")
	}
}

func TestAddIdempotentForSameFields(t *testing.T) {
	s := NewEphemeralStore()
	key := Key{ObservationDomainID: 1, SourceCRC: 42, TemplateID: 256}

	first, _, err := s.Add(key, Data, sampleFields(), 0)
	if err != nil {
		t.Fatal(err)
	}
	second, collided, err := s.Add(key, Data, sampleFields(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if collided {
		t.Fatal("expected re-announcement of identical fields not to collide")
	}
	if first != second {
		t.Fatal("expected the same template pointer for identical re-announcement")
	}
}

func TestAddSupersedesOnCollision(t *testing.T) {
	s := NewEphemeralStore()
	key := Key{ObservationDomainID: 1, SourceCRC: 42, TemplateID: 256}

	old, _, err := s.Add(key, Data, sampleFields(), 0)
	if err != nil {
		t.Fatal(err)
	}
	old.IncRef()

	newFields := []wire.FieldSpec{{ElementID: 8, Length: 4}}
	next, collided, err := s.Add(key, Data, newFields, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !collided {
		t.Fatal("expected collision when field list changes")
	}
	if !old.IsWithdrawn() {
		t.Fatal("expected superseded template to be marked withdrawn")
	}

	got, ok := s.Lookup(key)
	if !ok || got != next {
		t.Fatal("expected lookup to return the superseding template")
	}

	if old.DecRef() != true {
		t.Fatal("expected old template to be freeable once its last reference drops")
	}
}

func TestOptionsTemplateRequiresScope(t *testing.T) {
	s := NewEphemeralStore()
	key := Key{ObservationDomainID: 1, SourceCRC: 42, TemplateID: 300}
	if _, _, err := s.Add(key, Options, sampleFields(), 0); err != ErrInvalidScope {
		t.Fatalf("expected ErrInvalidScope, got %v", err)
	}
}

func TestWithdrawAll(t *testing.T) {
	s := NewEphemeralStore()
	group := GroupKey{ObservationDomainID: 1, SourceCRC: 42}
	keyA := Key{ObservationDomainID: 1, SourceCRC: 42, TemplateID: 256}
	keyB := Key{ObservationDomainID: 1, SourceCRC: 42, TemplateID: 257}

	if _, _, err := s.Add(keyA, Data, sampleFields(), 0); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Add(keyB, Data, sampleFields(), 0); err != nil {
		t.Fatal(err)
	}

	s.WithdrawAll(group)

	if _, ok := s.Lookup(keyA); ok {
		t.Fatal("expected keyA to be withdrawn")
	}
	if _, ok := s.Lookup(keyB); ok {
		t.Fatal("expected keyB to be withdrawn")
	}
}

func TestContainsFieldOffsetCache(t *testing.T) {
	s := NewEphemeralStore()
	key := Key{ObservationDomainID: 1, SourceCRC: 42, TemplateID: 256}
	tpl, _, err := s.Add(key, Data, sampleFields(), 0)
	if err != nil {
		t.Fatal(err)
	}

	offset, ok := tpl.ContainsField(0, 12) // destinationIPv4Address, second field
	if !ok || offset != 4 {
		t.Fatalf("expected offset 4, got %d, %v", offset, ok)
	}

	if _, ok := tpl.ContainsField(0, 99); ok {
		t.Fatal("expected absent field to report not found")
	}
}

func TestContainsFieldVariableLength(t *testing.T) {
	s := NewEphemeralStore()
	key := Key{ObservationDomainID: 1, SourceCRC: 42, TemplateID: 256}
	fields := []wire.FieldSpec{
		{ElementID: 13, Length: wire.VariableLength}, // string
		{ElementID: 8, Length: 4},                    // sourceIPv4Address, after variable field
	}
	tpl, _, err := s.Add(key, Data, fields, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !tpl.HasVariableLength() {
		t.Fatal("expected HasVariableLength to be true")
	}
	offset, found := tpl.ContainsField(0, 8)
	if !found {
		t.Fatal("expected field to be found even without a precomputed offset")
	}
	if offset != -1 {
		t.Fatal("expected no precomputed offset once a variable field precedes it")
	}
}

func TestDecayingStorePacketLimit(t *testing.T) {
	inner := NewEphemeralStore()
	s := NewDecayingStore(inner)
	group := GroupKey{ObservationDomainID: 1, SourceCRC: 7}
	key := Key{ObservationDomainID: 1, SourceCRC: 7, TemplateID: 256}

	s.SetPolicy(group, RefreshPolicy{PacketLimit: 2})
	if _, _, err := s.Add(key, Data, sampleFields(), 0); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	s.Tick(group, now)
	if _, ok := s.Lookup(key); !ok {
		t.Fatal("expected template to survive first tick")
	}
	s.Tick(group, now)
	if _, ok := s.Lookup(key); ok {
		t.Fatal("expected template to expire after packet limit reached")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewEphemeralStore()
	key := Key{ObservationDomainID: 1, SourceCRC: 42, TemplateID: 256}
	if _, _, err := s.Add(key, Data, sampleFields(), 0); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	if err := SaveSnapshot(s, path); err != nil {
		t.Fatal(err)
	}

	restored := NewEphemeralStore()
	if err := LoadSnapshot(restored, path); err != nil {
		t.Fatal(err)
	}

	tpl, ok := restored.Lookup(key)
	if !ok {
		t.Fatal("expected restored store to contain the snapshotted template")
	}
	if len(tpl.Fields) != len(sampleFields()) {
		t.Fatalf("expected %d fields, got %d", len(sampleFields()), len(tpl.Fields))
	}
}

func TestLoadSnapshotMissingFileIsNotError(t *testing.T) {
	s := NewEphemeralStore()
	if err := LoadSnapshot(s, filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("expected missing snapshot file to be a no-op, got %v", err)
	}
}
