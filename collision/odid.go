package collision

import (
	"sort"
	"sync"
)

// Record is the observation-domain bookkeeping spec.md §3 names: "(odid,
// last_export_time, last_sequence_number), maintained to reproduce
// export-time-anchored output files when a storage window rolls." Grounded
// in odid.c's struct odid_record; the sorted-array/bsearch storage odid.c
// uses to stand in for a hash map in C becomes a plain Go map here.
type Record struct {
	ODID           uint32
	LastExportTime uint32
	LastSequence   uint32
}

// Registry tracks one Record per observation domain, shared by the
// collision mapper and the file storage worker that regenerates a combined
// header whenever an output window opens.
type Registry struct {
	mu      sync.Mutex
	records map[uint32]*Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[uint32]*Record)}
}

// Get returns the record for id, creating a zero-valued one if absent,
// mirroring odid.c's odid_get.
func (r *Registry) Get(id uint32) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		rec = &Record{ODID: id}
		r.records[id] = rec
	}
	return rec
}

// Find returns the record for id without creating one, mirroring odid.c's
// odid_find.
func (r *Registry) Find(id uint32) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Update records the export time and sequence number of the most recent
// message seen for id.
func (r *Registry) Update(id uint32, exportTime, sequence uint32) {
	rec := r.Get(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.LastExportTime = exportTime
	rec.LastSequence = sequence
}

// Remove deletes the record for id, mirroring odid.c's odid_remove. It
// reports whether a record existed.
func (r *Registry) Remove(id uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return false
	}
	delete(r.records, id)
	return true
}

// IDs returns every observation domain id currently tracked, in ascending
// order.
func (r *Registry) IDs() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint32, 0, len(r.records))
	for id := range r.records {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
