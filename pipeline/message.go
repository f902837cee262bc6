// Package pipeline implements the multi-stage, multi-threaded data flow of
// spec.md §4.5 (C5): input workers feed a preprocessor, which decodes and
// routes each datagram, then pushes it through an ordered chain of
// intermediate stages and fans it out to every storage worker. Grounded in
// the teacher's ring-buffer/thread-per-stage model (pipeline.go,
// ring_buffer.go), adapted from its fixed-size ring buffers to Go channels
// and from manual pthread refcounting to sync/atomic on an int32, per spec.md §5's
// redesign flag on pthread primitives.
package pipeline

import (
	"sync/atomic"

	"github.com/CESNET/ipfixcol-sub004/decode"
	"github.com/CESNET/ipfixcol-sub004/profile"
	"github.com/CESNET/ipfixcol-sub004/record"
	"github.com/CESNET/ipfixcol-sub004/source"
	"github.com/CESNET/ipfixcol-sub004/template"
)

// RecordMeta is the per-data-record metadata array entry of spec.md §3:
// "Per-data-record metadata array used by routing (profile/channel list,
// geolocation fields, AS numbers, etc.)". Each entry here carries only what
// the preprocessor computes: the set id, the record view and the routing
// result. It has no geolocation or AS fields, and no stage in this module
// adds any.
type RecordMeta struct {
	SetID    uint16
	View     record.View
	Channels []*profile.Channel
}

// Message wraps one decode.Message for transport through the stage chain,
// adding the reference count and per-record metadata array spec.md §3
// assigns to the pipeline layer (decode.Message itself stays a pure decode
// result, see decode/message.go's doc comment).
//
// A Message starts with a reference count of 1, owned by whichever stage
// currently holds it. Retain must be called once per additional holder
// before handing a pointer to it to another goroutine (e.g. fan-out to N
// storage workers retains N-1 extra times); Release drops one reference and,
// at zero, returns every template referenced by the underlying data couples
// to the template store via DecRef.
type Message struct {
	Decoded *decode.Message
	Records []RecordMeta

	// Closed and ClosedSource carry the source-close sentinel of spec.md
	// §4.5/§8's scenario 6: "Preprocessor emits source_status = Closed
	// sentinel; intermediate stages forward; storage stages flush per-source
	// state." A closed Message has a nil Decoded and no Records; stages that
	// only act on decoded data should check IsClosed first.
	Closed       bool
	ClosedSource source.Info

	refs int32
}

// Wrap builds a pipeline Message from a freshly decoded one, with an
// initial reference count of 1.
func Wrap(decoded *decode.Message) *Message {
	return &Message{Decoded: decoded, refs: 1}
}

// ClosedEvent builds the source-close sentinel for src, with an initial
// reference count of 1.
func ClosedEvent(src source.Info) *Message {
	return &Message{Closed: true, ClosedSource: src, refs: 1}
}

// IsClosed reports whether m is a source-close sentinel rather than a
// decoded message.
func (m *Message) IsClosed() bool {
	return m.Closed
}

// Retain adds one reference. Call before sharing m with an additional
// concurrent holder (spec.md §5: "Atomicity... reference counts use atomic
// increment/decrement").
func (m *Message) Retain() {
	atomic.AddInt32(&m.refs, 1)
}

// Release drops one reference. At the 0 → freed transition (observed by
// exactly one caller, spec.md §5), every template referenced by the
// message's data couples is returned to store.
func (m *Message) Release(store template.Store) {
	if atomic.AddInt32(&m.refs, -1) != 0 {
		return
	}
	if m.Decoded == nil {
		return
	}
	for _, couple := range m.Decoded.DataCouples {
		if couple.Template != nil {
			store.DecRef(couple.Template)
		}
	}
}

// shutdownMessage is the sentinel spec.md §5 describes: "Shutdown is
// initiated by delivering the shutdown sentinel into the preprocessor
// queue. Each stage drains its inbound queue, forwards the sentinel, and
// exits." It carries no payload and is never released through the template
// store.
var shutdownMessage = &Message{}

// IsShutdown reports whether m is the shutdown sentinel rather than a real
// decoded message.
func (m *Message) IsShutdown() bool {
	return m == shutdownMessage
}

// Shutdown returns the shutdown sentinel for use by a Pipeline's caller.
func Shutdown() *Message {
	return shutdownMessage
}
