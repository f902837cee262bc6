// Package plugin declares the three collaborator interfaces of spec.md
// §6.1-§6.3 (input, intermediate, storage) and hosts their reference
// implementations under input/, intermediate/, and storage/.
package plugin

import (
	"github.com/CESNET/ipfixcol-sub004/decode"
	"github.com/CESNET/ipfixcol-sub004/pipeline"
	"github.com/CESNET/ipfixcol-sub004/source"
)

// Signal is what an InputHandle reports in place of a packet, spec.md
// §6.1: "Signals: Intr, Closed, Error."
type Signal int

const (
	SignalNone Signal = iota
	SignalIntr
	SignalClosed
	SignalError
)

// InputHandle is the per-source handle an InputPlugin's Init returns,
// spec.md §6.1: "get_packet(handle) → PacketOrSignal". The core never
// interprets socket state; it trusts the handle to coalesce datagrams and
// emit one packet per call.
type InputHandle interface {
	GetPacket() (buf []byte, info source.Info, status decode.SourceStatus, sig Signal, err error)
	Close() error
}

// InputPlugin sets up a source (socket, file) from a raw configuration
// blob, spec.md §6.1: "init(xml_params) → InputHandle".
type InputPlugin interface {
	Init(params []byte) (InputHandle, error)
}

// IntermediatePlugin builds one IntermediateStage from a raw configuration
// blob, spec.md §6.2: "init(xml_params, downstream_handle,
// plugin_source_id, template_store) → StageConfig". The downstream handle,
// plugin source id and template store are implicit in the Go model: the
// pipeline package itself owns stage sequencing, and a stage reaches each
// record's template through its record.View, so Init receives only params.
type IntermediatePlugin interface {
	Init(params []byte) (pipeline.IntermediateStage, error)
}

// StoragePlugin builds one StorageStage from a raw configuration blob,
// spec.md §6.3: "init(xml_params) → StorageConfig".
type StoragePlugin interface {
	Init(params []byte) (pipeline.StorageStage, error)
}
