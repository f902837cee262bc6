package odidrewrite

import (
	"net"
	"testing"

	"github.com/CESNET/ipfixcol-sub004/decode"
	"github.com/CESNET/ipfixcol-sub004/pipeline"
	"github.com/CESNET/ipfixcol-sub004/source"
	"github.com/CESNET/ipfixcol-sub004/wire"
)

func buildMessage(odid uint32, addr net.IP, port uint16) *pipeline.Message {
	decoded := &decode.Message{
		Header: wire.Header{ObservationDomainID: odid},
		Source: source.Info{Transport: "udp", Addr: addr, Port: port},
	}
	return pipeline.Wrap(decoded)
}

func TestRewriteAssignsStableIDPerSource(t *testing.T) {
	s := New(10000)

	msgA1 := buildMessage(1, net.IPv4(10, 0, 0, 1), 2055)
	msgA2 := buildMessage(1, net.IPv4(10, 0, 0, 1), 2055)
	msgB := buildMessage(1, net.IPv4(10, 0, 0, 2), 2055)

	if _, err := s.Process(msgA1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Process(msgA2); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Process(msgB); err != nil {
		t.Fatal(err)
	}

	if msgA1.Decoded.Header.ObservationDomainID != msgA2.Decoded.Header.ObservationDomainID {
		t.Fatalf("expected repeated messages from the same source to get the same rewritten ODID: %d vs %d",
			msgA1.Decoded.Header.ObservationDomainID, msgA2.Decoded.Header.ObservationDomainID)
	}
	if msgA1.Decoded.Header.ObservationDomainID == msgB.Decoded.Header.ObservationDomainID {
		t.Fatal("expected two colliding sources to get distinct rewritten ODIDs")
	}

	orig, ok := s.OriginalODID(msgA1.Decoded.Header.ObservationDomainID)
	if !ok || orig != 1 {
		t.Fatalf("expected the original ODID to be recoverable, got %d, %v", orig, ok)
	}
}
