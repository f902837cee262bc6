package ie

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/CESNET/ipfixcol-sub004/datatype"
	"github.com/CESNET/ipfixcol-sub004/iana/semantics"
	"github.com/CESNET/ipfixcol-sub004/iana/status"
)

//go:embed data/elements.csv
var ianaCSV embed.FS

// NewIANARegistry builds a Registry pre-populated with the built-in,
// enterprise_number=0 IANA information elements, grounded in the teacher's
// constants.go/csv.go embed-and-parse pattern.
func NewIANARegistry() (*Registry, error) {
	f, err := ianaCSV.Open("data/elements.csv")
	if err != nil {
		return nil, fmt.Errorf("ie: opening embedded IANA element table: %w", err)
	}
	defer f.Close()

	defs, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("ie: parsing embedded IANA element table: %w", err)
	}

	r := NewRegistry()
	for _, d := range defs {
		r.Add(d)
	}
	return r, nil
}

// MustNewIANARegistry panics on error; used for package-level bootstrap in
// tests and for processes that treat a malformed embedded table as fatal.
func MustNewIANARegistry() *Registry {
	r, err := NewIANARegistry()
	if err != nil {
		panic(err)
	}
	return r
}

func readCSV(r io.Reader) ([]ElementDef, error) {
	cr := csv.NewReader(r)
	if _, err := cr.Read(); err != nil { // header row
		return nil, err
	}

	var defs []ElementDef
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 7 {
			return nil, fmt.Errorf("ie: malformed row, expected 7 columns, got %d", len(record))
		}

		id, err := strconv.ParseUint(record[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("ie: invalid element id %q: %w", record[0], err)
		}

		def := ElementDef{
			ID:          uint16(id),
			Name:        record[1],
			Description: record[5],
			Units:       record[6],
		}
		if typ := strings.TrimSpace(record[2]); typ != "" {
			def.Type = datatype.Parse(typ)
		}
		if sem := strings.TrimSpace(record[3]); sem != "" {
			def.Semantic = semantics.Parse(sem)
		}
		if st := strings.TrimSpace(record[4]); st != "" {
			def.Status = status.Parse(st)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
