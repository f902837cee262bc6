package pipeline

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CESNET/ipfixcol-sub004/decode"
	"github.com/CESNET/ipfixcol-sub004/profile"
	"github.com/CESNET/ipfixcol-sub004/source"
	"github.com/CESNET/ipfixcol-sub004/template"
	"github.com/CESNET/ipfixcol-sub004/wire"
)

func encodeTemplateSet(templateID uint16, fields []wire.FieldSpec) []byte {
	var body []byte
	body = binary.BigEndian.AppendUint16(body, templateID)
	body = binary.BigEndian.AppendUint16(body, uint16(len(fields)))
	for _, f := range fields {
		body = append(body, wire.EncodeFieldSpec(f)...)
	}
	sh := wire.SetHeader{ID: wire.TemplateSetID, Length: uint16(wire.SetHeaderLength + len(body))}
	return append(sh.Encode(), body...)
}

func encodeDataSet(setID uint16, content []byte) []byte {
	sh := wire.SetHeader{ID: setID, Length: uint16(wire.SetHeaderLength + len(content))}
	return append(sh.Encode(), content...)
}

func buildMessage(t *testing.T) []byte {
	t.Helper()
	fields := []wire.FieldSpec{{ElementID: 8, Length: 4}, {ElementID: 4, Length: 1}}
	tset := encodeTemplateSet(256, fields)
	dset := encodeDataSet(256, []byte{192, 168, 1, 1, 6})
	payload := append(tset, dset...)
	hdr := wire.Header{Version: 16, Length: uint16(wire.HeaderLength + len(payload)), ObservationDomainID: 1}
	return append(hdr.Encode(), payload...)
}

type passThroughStage struct{ calls int }

func (s *passThroughStage) Name() string { return "passthrough" }
func (s *passThroughStage) Process(msg *Message) (*Message, error) {
	s.calls++
	return msg, nil
}

type droppingStage struct{}

func (droppingStage) Name() string                          { return "dropper" }
func (droppingStage) Process(msg *Message) (*Message, error) { return nil, nil }

type failingStage struct{}

func (failingStage) Name() string                          { return "failer" }
func (failingStage) Process(msg *Message) (*Message, error) { return nil, errors.New("boom") }

type recordingStorage struct {
	mu     sync.Mutex
	count  int
	closes int
}

func (s *recordingStorage) Name() string { return "recorder" }
func (s *recordingStorage) Store(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.IsClosed() {
		s.closes++
		return nil
	}
	s.count += len(msg.Records)
	return nil
}

func waitDone(t *testing.T, p *Pipeline) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("pipeline did not shut down in time")
	}
}

func TestPipelineRoutesAndStores(t *testing.T) {
	store := template.NewEphemeralStore()
	router := profile.NewRouter()
	router.Load(profile.NewRoot("root", "/data", profile.Normal))

	pass := &passThroughStage{}
	storage := &recordingStorage{}
	p := New(Config{
		Store:         store,
		Router:        router,
		Stages:        []IntermediateStage{pass},
		Storages:      []StorageStage{storage},
		QueueCapacity: 4,
	})

	go p.Run()
	p.Submit(buildMessage(t), source.Info{Transport: "udp"}, decode.StatusOpened)
	p.InitiateShutdown()
	waitDone(t, p)

	if pass.calls != 1 {
		t.Fatalf("expected the intermediate stage to see 1 message, got %d", pass.calls)
	}
	storage.mu.Lock()
	defer storage.mu.Unlock()
	if storage.count != 1 {
		t.Fatalf("expected the storage stage to see 1 record, got %d", storage.count)
	}
}

func TestPipelineDropInStageStopsPropagation(t *testing.T) {
	store := template.NewEphemeralStore()
	router := profile.NewRouter()
	storage := &recordingStorage{}
	p := New(Config{
		Store:         store,
		Router:        router,
		Stages:        []IntermediateStage{droppingStage{}},
		Storages:      []StorageStage{storage},
		QueueCapacity: 4,
	})

	go p.Run()
	p.Submit(buildMessage(t), source.Info{Transport: "udp"}, decode.StatusOpened)
	p.InitiateShutdown()
	waitDone(t, p)

	storage.mu.Lock()
	defer storage.mu.Unlock()
	if storage.count != 0 {
		t.Fatalf("expected a dropped message to never reach storage, got %d records", storage.count)
	}
}

func TestPipelineStageErrorIsolatesFailure(t *testing.T) {
	store := template.NewEphemeralStore()
	router := profile.NewRouter()
	storage := &recordingStorage{}
	p := New(Config{
		Store:         store,
		Router:        router,
		Stages:        []IntermediateStage{failingStage{}},
		Storages:      []StorageStage{storage},
		QueueCapacity: 4,
	})

	go p.Run()
	p.Submit(buildMessage(t), source.Info{Transport: "udp"}, decode.StatusOpened)
	p.Submit(buildMessage(t), source.Info{Transport: "udp"}, decode.StatusOpened)
	p.InitiateShutdown()
	waitDone(t, p)

	storage.mu.Lock()
	defer storage.mu.Unlock()
	if storage.count != 0 {
		t.Fatalf("expected a stage error to drop the message rather than kill the pipeline, got %d records", storage.count)
	}
}

func TestPipelineSourceCloseWithdrawsTemplatesAndForwards(t *testing.T) {
	store := template.NewEphemeralStore()
	router := profile.NewRouter()
	router.Load(profile.NewRoot("root", "/data", profile.Normal))

	pass := &passThroughStage{}
	storage := &recordingStorage{}
	p := New(Config{
		Store:         store,
		Router:        router,
		Stages:        []IntermediateStage{pass},
		Storages:      []StorageStage{storage},
		QueueCapacity: 4,
	})

	info := source.Info{Transport: "udp"}
	go p.Run()
	p.Submit(buildMessage(t), info, decode.StatusOpened)
	p.Submit(nil, info, decode.StatusClosed)
	p.InitiateShutdown()
	waitDone(t, p)

	if _, ok := store.Lookup(template.Key{ObservationDomainID: 1, SourceCRC: source.CRC(info), TemplateID: 256}); ok {
		t.Fatal("expected the template to be withdrawn after the source closed")
	}
	storage.mu.Lock()
	defer storage.mu.Unlock()
	if storage.closes != 1 {
		t.Fatalf("expected the storage stage to observe exactly 1 close event, got %d", storage.closes)
	}
	if pass.calls != 2 {
		t.Fatalf("expected the intermediate stage to see both the data message and the close event, got %d", pass.calls)
	}
}

func TestPipelineFanOutReachesEveryStorage(t *testing.T) {
	store := template.NewEphemeralStore()
	router := profile.NewRouter()
	a, b := &recordingStorage{}, &recordingStorage{}
	p := New(Config{
		Store:         store,
		Router:        router,
		Storages:      []StorageStage{a, b},
		QueueCapacity: 4,
	})

	go p.Run()
	p.Submit(buildMessage(t), source.Info{Transport: "udp"}, decode.StatusOpened)
	p.InitiateShutdown()
	waitDone(t, p)

	a.mu.Lock()
	b.mu.Lock()
	defer a.mu.Unlock()
	defer b.mu.Unlock()
	if a.count != 1 || b.count != 1 {
		t.Fatalf("expected both storages to receive the message, got a=%d b=%d", a.count, b.count)
	}
}
