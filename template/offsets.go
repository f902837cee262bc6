package template

import "github.com/CESNET/ipfixcol-sub004/wire"

// wellKnownIEs are the enterprise-zero elements the offset cache
// precomputes a record offset for, per spec.md §3: "octet count, packet
// count, protocol, ports, source/dest addresses v4/v6". Entries are IANA
// element ids.
var wellKnownIEs = [...]uint16{
	1,  // octetDeltaCount
	2,  // packetDeltaCount
	4,  // protocolIdentifier
	7,  // sourceTransportPort
	8,  // sourceIPv4Address
	11, // destinationTransportPort
	12, // destinationIPv4Address
	27, // sourceIPv6Address
	28, // destinationIPv6Address
}

func wellKnownIndex(ieID uint16) int {
	for i, id := range wellKnownIEs {
		if id == ieID {
			return i
		}
	}
	return -1
}

// offsetCache maps each well-known IE to a precomputed byte offset into the
// record, or -1 when the offset isn't statically known (the IE is absent,
// or a preceding field is variable-length so no fixed offset exists).
type offsetCache [len(wellKnownIEs)]int32

// buildOffsetCache walks the field list once at admission time (spec.md
// §4.1's "algorithm for field length + offset") to compute a fixed offset
// for every well-known IE whose position is determined entirely by
// preceding fixed-length fields.
func buildOffsetCache(fields []wire.FieldSpec) offsetCache {
	var cache offsetCache
	for i := range cache {
		cache[i] = -1
	}

	offset := int32(0)
	sawVariable := false
	for _, f := range fields {
		if !sawVariable && f.EnterpriseNumber == 0 {
			if idx := wellKnownIndex(f.ElementID); idx >= 0 {
				cache[idx] = offset
			}
		}
		if f.IsVariableLength() {
			sawVariable = true
			continue
		}
		if !sawVariable {
			offset += int32(f.Length)
		}
	}
	return cache
}

// ContainsField implements spec.md §4.1's contains_field. found reports
// whether ie_ref is present in the template at all. When found is true,
// offset is either the precomputed byte offset (fast path, spec.md §4.3's
// "returns immediately without walking") or -1 when the field exists but
// has no precomputed offset (it's past a variable-length field, or isn't
// one of the well-known IEs), in which case the caller must walk the
// record to locate it.
func (t *Template) ContainsField(enterpriseNumber uint32, elementID uint16) (offset int32, found bool) {
	if enterpriseNumber == 0 {
		if idx := wellKnownIndex(elementID); idx >= 0 {
			if cached := t.offsets[idx]; cached >= 0 {
				return cached, true
			}
		}
	}
	for _, f := range t.Fields {
		if f.EnterpriseNumber == enterpriseNumber && f.ElementID == elementID {
			return -1, true
		}
	}
	return -1, false
}
