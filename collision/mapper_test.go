package collision

import (
	"testing"

	"github.com/CESNET/ipfixcol-sub004/template"
	"github.com/CESNET/ipfixcol-sub004/wire"
)

func fieldsA() []wire.FieldSpec {
	return []wire.FieldSpec{{ElementID: 8, Length: 4}}
}

func fieldsB() []wire.FieldSpec {
	return []wire.FieldSpec{{ElementID: 8, Length: 4}, {ElementID: 12, Length: 4}}
}

func TestProcessFirstAnnouncementPasses(t *testing.T) {
	m := NewMapper()
	action, newID := m.Process(1, 100, 256, template.Data, fieldsA())
	if action != Pass || newID != 256 {
		t.Fatalf("expected Pass/256, got %v/%d", action, newID)
	}
}

func TestProcessSameFieldsFromOtherSourcePasses(t *testing.T) {
	m := NewMapper()
	m.Process(1, 100, 256, template.Data, fieldsA())
	action, newID := m.Process(1, 200, 256, template.Data, fieldsA())
	if action != Pass || newID != 256 {
		t.Fatalf("expected Pass/256 for identical fields from another source, got %v/%d", action, newID)
	}
}

func TestProcessCollisionRewrites(t *testing.T) {
	m := NewMapper()
	m.Process(1, 100, 256, template.Data, fieldsA())
	action, newID := m.Process(1, 200, 256, template.Data, fieldsB())
	if action != Rewrite {
		t.Fatalf("expected Rewrite, got %v", action)
	}
	if newID == 256 {
		t.Fatal("expected a fresh id distinct from the colliding one")
	}
}

func TestProcessRemembersRewriteForSameSource(t *testing.T) {
	m := NewMapper()
	m.Process(1, 100, 256, template.Data, fieldsA())
	_, firstNew := m.Process(1, 200, 256, template.Data, fieldsB())
	action, secondNew := m.Process(1, 200, 256, template.Data, fieldsB())
	if action != Rewrite || secondNew != firstNew {
		t.Fatalf("expected remembered rewrite %d, got %v/%d", firstNew, action, secondNew)
	}
}

func TestProcessDuplicateWhenIDSpaceExhausted(t *testing.T) {
	m := NewMapper()
	d := newDomainState()
	d.nextID = wire.MinDataSetID
	for id := wire.MinDataSetID; ; id++ {
		d.byID[id] = entry{fields: fieldsA(), kind: template.Data}
		if id == 65535 {
			break
		}
	}
	m.domains[1] = d

	action, _ := m.Process(1, 999, 256, template.Data, fieldsB())
	if action != Duplicate {
		t.Fatalf("expected Duplicate once the id space is exhausted, got %v", action)
	}
}

func TestTemplatesEnumeratesByKind(t *testing.T) {
	m := NewMapper()
	m.Process(1, 100, 256, template.Data, fieldsA())
	m.Process(1, 100, 300, template.Options, fieldsB())

	data := m.Templates(1, template.Data)
	if len(data) != 1 || data[0].ID != 256 {
		t.Fatalf("unexpected data templates: %+v", data)
	}
	options := m.Templates(1, template.Options)
	if len(options) != 1 || options[0].ID != 300 {
		t.Fatalf("unexpected options templates: %+v", options)
	}
}

func TestOdidRegistryGetCreatesThenUpdates(t *testing.T) {
	r := NewRegistry()
	rec := r.Get(7)
	if rec.ODID != 7 {
		t.Fatalf("expected record for odid 7, got %+v", rec)
	}
	r.Update(7, 1000, 5)
	got, ok := r.Find(7)
	if !ok || got.LastExportTime != 1000 || got.LastSequence != 5 {
		t.Fatalf("unexpected record after update: %+v, %v", got, ok)
	}
	if !r.Remove(7) {
		t.Fatal("expected Remove to report the record existed")
	}
	if _, ok := r.Find(7); ok {
		t.Fatal("expected record to be gone after Remove")
	}
}
