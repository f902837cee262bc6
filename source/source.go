// Package source computes the stable per-exporter identity spec.md §3
// calls source_crc: a hash of the source's transport identity, used to
// distinguish multiple exporters sharing an observation domain id within
// one collecting process (grounded in template_manager.c's tm_key_create,
// whose crc is "CRC from source IP and source port").
package source

import (
	"net"

	"github.com/cespare/xxhash/v2"
)

// Info identifies one exporter's transport-level address, the input_info
// the preprocessor stamps onto every message (spec.md §6.1).
type Info struct {
	Transport string // "udp", "tcp", "sctp", "file"
	Addr      net.IP
	Port      uint16
}

// CRC returns a stable 32-bit identity for info, computed the way the
// original collector derives its source crc: from the exporter's address
// and port, not from any packet payload, so it stays constant across every
// datagram the same exporter sends.
func CRC(info Info) uint32 {
	h := xxhash.New()
	h.WriteString(info.Transport)
	if info.Addr != nil {
		h.Write(info.Addr)
	}
	var portBuf [2]byte
	portBuf[0] = byte(info.Port >> 8)
	portBuf[1] = byte(info.Port)
	h.Write(portBuf[:])
	return uint32(h.Sum64())
}
