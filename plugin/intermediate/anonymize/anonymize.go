// Package anonymize implements the IP-anonymization intermediate stage of
// spec.md §6.7's `anonymization.{type,key}` setting, grounded in
// anonymization_ip.c: it walks every record's resolved fields and replaces
// the source/destination IPv4/IPv6 addresses in place, either via
// prefix-preserving Crypto-PAn pseudonymization or plain truncation.
package anonymize

import (
	"fmt"

	"github.com/CESNET/ipfixcol-sub004/pipeline"
)

// Mode selects the anonymization algorithm, spec.md §6.7:
// "anonymization.type".
type Mode int

const (
	ModeCryptoPAN Mode = iota
	ModeTruncation
)

// entities_to_anonymize in anonymization_ip.c: the four standard IP address
// information elements, enterprise number 0.
const (
	sourceIPv4      = 8
	destinationIPv4 = 12
	sourceIPv6      = 27
	destinationIPv6 = 28
)

// Stage is a pipeline.IntermediateStage anonymizing IP address fields.
type Stage struct {
	mode Mode
	pan  *cryptoPAN
}

// New builds an anonymization Stage. key is the Crypto-PAn passphrase; it is
// ignored when mode is ModeTruncation.
func New(mode Mode, key []byte) (*Stage, error) {
	s := &Stage{mode: mode}
	if mode == ModeCryptoPAN {
		pan, err := newCryptoPAN(key)
		if err != nil {
			return nil, fmt.Errorf("anonymize: %w", err)
		}
		s.pan = pan
	}
	return s, nil
}

func (s *Stage) Name() string { return "anonymize" }

// Process implements pipeline.IntermediateStage. It mutates each record's
// buffer in place (spec.md §5: "stages that need to mutate a message either
// do so in-place... because each stage has one worker") and always passes
// the message on; a record missing an IP field is left untouched.
func (s *Stage) Process(msg *pipeline.Message) (*pipeline.Message, error) {
	if msg.IsClosed() {
		return msg, nil
	}
	for _, rm := range msg.Records {
		s.anonymizeField(rm, 0, sourceIPv4, 4)
		s.anonymizeField(rm, 0, destinationIPv4, 4)
		s.anonymizeField(rm, 0, sourceIPv6, 16)
		s.anonymizeField(rm, 0, destinationIPv6, 16)
	}
	return msg, nil
}

func (s *Stage) anonymizeField(rm pipeline.RecordMeta, enterpriseNumber uint32, elementID uint16, width int) {
	raw, ok := rm.View.Field(enterpriseNumber, elementID)
	if !ok || len(raw) != width {
		return
	}

	var replacement []byte
	switch s.mode {
	case ModeCryptoPAN:
		replacement = s.pan.anonymize(raw, width*8)
	case ModeTruncation:
		replacement = truncate(raw, width)
	default:
		return
	}
	_ = rm.View.SetField(enterpriseNumber, elementID, replacement)
}

// truncate zeroes trailing address bytes exactly as anonymization_ip.c's
// truncate_IPv4Address (bytes [2:4) of 4) and truncate_IPv6Address (bytes
// [7:15) of 16) do.
func truncate(addr []byte, width int) []byte {
	out := make([]byte, width)
	copy(out, addr)
	if width == 4 {
		out[2], out[3] = 0, 0
		return out
	}
	for i := 7; i < 15 && i < width; i++ {
		out[i] = 0
	}
	return out
}
