// Package filestore implements the windowed file storage worker of spec.md
// §6.7's `interval`/`align`/`base_dir` settings, grounded in files.c and
// configuration.c: output files are rotated on a fixed interval, one file
// per (profile, channel) directory, and a new window's file opens with a
// combined header listing every template currently known for the window's
// observation domain so a reader never needs the original announcement
// packet. Template ID remapping across colliding sources uses the
// collision package (C4); per-ODID export-time/sequence bookkeeping uses
// its Registry.
package filestore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CESNET/ipfixcol-sub004/collision"
	"github.com/CESNET/ipfixcol-sub004/pipeline"
	"github.com/CESNET/ipfixcol-sub004/source"
	"github.com/CESNET/ipfixcol-sub004/template"
	"github.com/CESNET/ipfixcol-sub004/wire"
)

// Options configures a Stage, spec.md §6.7.
type Options struct {
	BaseDir  string
	Interval time.Duration
	Align    bool // when true, window boundaries fall on multiples of Interval since the Unix epoch
}

// Stage is a pipeline.StorageStage writing one rotating file per channel
// directory, grounded in files_t/files_add_packet/files_new_window.
type Stage struct {
	opts    Options
	mapper  *collision.Mapper
	odids   *collision.Registry
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	file  *os.File
	start time.Time
}

// New builds a Stage rooted at opts.BaseDir.
func New(opts Options) *Stage {
	return &Stage{
		opts:    opts,
		mapper:  collision.NewMapper(),
		odids:   collision.NewRegistry(),
		windows: make(map[string]*window),
	}
}

func (s *Stage) Name() string { return "filestore" }

// Store implements pipeline.StorageStage: every channel touched by at least
// one of the message's records gets the raw, normalized message bytes
// appended to its current window file (files_add_packet's "copy the packet
// to the output file"); a new window opens first if the clock has crossed
// an interval boundary.
func (s *Stage) Store(msg *pipeline.Message) error {
	if msg.IsClosed() {
		// files_destroy's flush-on-disconnect: close every open window so a
		// reader never waits on a file a now-gone source will never fill
		// further. The next message reopens fresh windows as needed.
		return s.Close()
	}

	odid := msg.Decoded.Header.ObservationDomainID
	crc := source.CRC(msg.Decoded.Source)

	s.processTemplates(msg, odid, crc)
	s.updateODIDBookkeeping(msg, odid)

	channels := s.touchedChannels(msg)
	if len(channels) == 0 {
		return nil
	}

	now := time.Unix(int64(msg.Decoded.Header.ExportTime), 0)
	var firstErr error
	for _, dir := range channels {
		w, err := s.windowFor(dir, odid, now)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if _, err := w.file.Write(msg.Decoded.Buf); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Stage) processTemplates(msg *pipeline.Message, odid, crc uint32) {
	for _, couple := range msg.Decoded.DataCouples {
		if couple.Template == nil {
			continue
		}
		s.mapper.Process(odid, crc, couple.Template.Key.TemplateID, couple.Template.Kind, couple.Template.Fields)
	}
}

func (s *Stage) updateODIDBookkeeping(msg *pipeline.Message, odid uint32) {
	seq := msg.Decoded.Header.SequenceNumber + uint32(len(msg.Decoded.DataCouples))
	s.odids.Update(odid, msg.Decoded.Header.ExportTime, seq)
}

func (s *Stage) touchedChannels(msg *pipeline.Message) []string {
	seen := map[string]bool{}
	var dirs []string
	for _, rm := range msg.Records {
		for _, ch := range rm.Channels {
			dir := filepath.Join(s.opts.BaseDir, ch.Profile().Directory, ch.Name)
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

func (s *Stage) windowFor(dir string, odid uint32, now time.Time) (*window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[dir]
	if ok && !s.windowExpired(w, now) {
		return w, nil
	}
	if ok {
		w.file.Close()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	start := s.windowStart(now)
	path := filepath.Join(dir, fmt.Sprintf("%d.ipfix", start.Unix()))
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	// files_new_window's "add all known templates to the file": a reader
	// opening this window alone still has every template it needs.
	known := append(s.mapper.Templates(odid, template.Data), s.mapper.Templates(odid, template.Options)...)
	if len(known) > 0 {
		if _, err := f.Write(encodeTemplateHeader(known)); err != nil {
			f.Close()
			return nil, err
		}
	}

	w = &window{file: f, start: start}
	s.windows[dir] = w
	return w, nil
}

func (s *Stage) windowExpired(w *window, now time.Time) bool {
	if s.opts.Interval <= 0 {
		return false
	}
	return now.Sub(w.start) >= s.opts.Interval
}

func (s *Stage) windowStart(now time.Time) time.Time {
	if s.opts.Interval <= 0 {
		return now
	}
	if !s.opts.Align {
		return now
	}
	secs := now.Unix()
	interval := int64(s.opts.Interval.Seconds())
	aligned := secs - (secs % interval)
	return time.Unix(aligned, 0)
}

// Close flushes and closes every open window file.
func (s *Stage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for dir, w := range s.windows {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.windows, dir)
	}
	return firstErr
}

// encodeTemplateHeader builds the leading template set windowFor writes to
// every new window file, from the collision mapper's current view of an
// observation domain's templates, per files.c's files_file_add_templates.
func encodeTemplateHeader(records []collision.TemplateRecord) []byte {
	var body []byte
	for _, r := range records {
		body = binary.BigEndian.AppendUint16(body, r.ID)
		body = binary.BigEndian.AppendUint16(body, uint16(len(r.Fields)))
		for _, f := range r.Fields {
			body = append(body, wire.EncodeFieldSpec(f)...)
		}
	}
	sh := wire.SetHeader{ID: wire.TemplateSetID, Length: uint16(wire.SetHeaderLength + len(body))}
	return append(sh.Encode(), body...)
}
