package template

import (
	"fmt"
	"os"
	"time"

	"github.com/CESNET/ipfixcol-sub004/wire"
	"gopkg.in/yaml.v3"
)

// snapshotField and snapshotTemplate are the YAML-serializable shadow of a
// Template, grounded in the teacher's persistent.go/yaml.go pairing of a
// stateful cache with a flat-file dump format. Restoring a snapshot is a
// convenience for warm-starting a collector's template knowledge after a
// planned restart; spec.md §1 excludes it from guaranteeing exactly-once
// delivery across restarts ("persistent queueing across restarts" is an
// explicit non-goal), so a stale or missing snapshot is never an error.
type snapshotField struct {
	EnterpriseNumber uint32 `yaml:"enterprise_number,omitempty"`
	ElementID        uint16 `yaml:"element_id"`
	Length           uint16 `yaml:"length"`
}

type snapshotTemplate struct {
	ObservationDomainID uint32          `yaml:"odid"`
	SourceCRC           uint32          `yaml:"source_crc"`
	TemplateID          uint16          `yaml:"template_id"`
	Kind                string          `yaml:"kind"`
	ScopeFieldCount     int             `yaml:"scope_field_count,omitempty"`
	Fields              []snapshotField `yaml:"fields"`
}

type snapshotDocument struct {
	Templates []snapshotTemplate `yaml:"templates"`
}

// SaveSnapshot writes every non-withdrawn template in s to path as YAML.
func SaveSnapshot(s *EphemeralStore, path string) error {
	doc := snapshotDocument{}

	s.mu.RLock()
	groups := make([]*groupState, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g)
	}
	s.mu.RUnlock()

	for _, g := range groups {
		g.mu.Lock()
		for _, t := range g.templates {
			if t.IsWithdrawn() {
				continue
			}
			st := snapshotTemplate{
				ObservationDomainID: t.Key.ObservationDomainID,
				SourceCRC:           t.Key.SourceCRC,
				TemplateID:          t.Key.TemplateID,
				Kind:                t.Kind.String(),
				ScopeFieldCount:     t.ScopeFieldCount,
			}
			for _, f := range t.Fields {
				st.Fields = append(st.Fields, snapshotField{
					EnterpriseNumber: f.EnterpriseNumber,
					ElementID:        f.ElementID,
					Length:           f.Length,
				})
			}
			doc.Templates = append(doc.Templates, st)
		}
		g.mu.Unlock()
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("template: creating snapshot file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()
	return enc.Encode(doc)
}

// LoadSnapshot restores templates from a previously saved YAML file into s.
// A missing file is not an error: a collector with no snapshot simply waits
// for fresh template sets on the wire. A file that exists but cannot be
// opened or decoded returns an error; templates the store rejects are
// skipped.
func LoadSnapshot(s *EphemeralStore, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("template: opening snapshot file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var doc snapshotDocument
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("template: decoding snapshot file: %w", err)
	}

	now := time.Now()
	for _, st := range doc.Templates {
		kind := Data
		if st.Kind == "options" {
			kind = Options
		}
		fields := make([]wire.FieldSpec, 0, len(st.Fields))
		for _, f := range st.Fields {
			fields = append(fields, wire.FieldSpec{
				EnterpriseNumber: f.EnterpriseNumber,
				ElementID:        f.ElementID,
				Length:           f.Length,
			})
		}
		key := Key{
			ObservationDomainID: st.ObservationDomainID,
			SourceCRC:           st.SourceCRC,
			TemplateID:          st.TemplateID,
		}
		if _, _, err := s.Add(key, kind, fields, st.ScopeFieldCount); err != nil {
			continue
		}
		if tpl, ok := s.Lookup(key); ok {
			tpl.FirstSeenTime = now
			tpl.LastRefreshTime = now
		}
	}
	return nil
}
