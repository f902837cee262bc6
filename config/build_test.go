package config

import (
	"strings"
	"testing"

	"github.com/CESNET/ipfixcol-sub004/decode"
	"github.com/CESNET/ipfixcol-sub004/pipeline"
	"github.com/CESNET/ipfixcol-sub004/plugin"
	"github.com/CESNET/ipfixcol-sub004/profile"
	"github.com/CESNET/ipfixcol-sub004/source"
	"github.com/CESNET/ipfixcol-sub004/template"
)

type stubInputHandle struct{}

func (stubInputHandle) GetPacket() ([]byte, source.Info, decode.SourceStatus, plugin.Signal, error) {
	return nil, source.Info{}, decode.StatusNew, plugin.SignalClosed, nil
}
func (stubInputHandle) Close() error { return nil }

type stubInputPlugin struct{ initErr error }

func (p stubInputPlugin) Init(params []byte) (plugin.InputHandle, error) {
	if p.initErr != nil {
		return nil, p.initErr
	}
	return stubInputHandle{}, nil
}

type stubStage struct{ name string }

func (s stubStage) Name() string { return s.name }
func (s stubStage) Process(msg *pipeline.Message) (*pipeline.Message, error) { return msg, nil }

type stubIntermediatePlugin struct{}

func (stubIntermediatePlugin) Init(params []byte) (pipeline.IntermediateStage, error) {
	return stubStage{name: "stub"}, nil
}

type stubStorage struct{}

func (stubStorage) Name() string                          { return "stub-storage" }
func (stubStorage) Store(msg *pipeline.Message) error { return nil }

type stubStoragePlugin struct{}

func (stubStoragePlugin) Init(params []byte) (pipeline.StorageStage, error) {
	return stubStorage{}, nil
}

func TestBuildResolvesRegisteredPlugins(t *testing.T) {
	cfg, err := Read(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	reg.RegisterInput("udp", stubInputPlugin{})
	reg.RegisterIntermediate("anonymize", stubIntermediatePlugin{})
	reg.RegisterStorage("filestore", stubStoragePlugin{})

	store := template.NewEphemeralStore()
	router := profile.NewRouter()

	pcfg, handles, err := Build(cfg, reg, store, router)
	if err != nil {
		t.Fatal(err)
	}
	if len(handles) != 1 {
		t.Fatalf("expected 1 input handle, got %d", len(handles))
	}
	if len(pcfg.Stages) != 1 || pcfg.Stages[0].Name() != "stub" {
		t.Fatalf("unexpected stages %+v", pcfg.Stages)
	}
	if len(pcfg.Storages) != 1 {
		t.Fatalf("unexpected storages %+v", pcfg.Storages)
	}
	if pcfg.QueueCapacity != 128 {
		t.Fatalf("unexpected queue capacity %d", pcfg.QueueCapacity)
	}
}

func TestBuildFailsOnUnknownPlugin(t *testing.T) {
	cfg, err := Read(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry()
	store := template.NewEphemeralStore()
	router := profile.NewRouter()

	if _, _, err := Build(cfg, reg, store, router); err == nil {
		t.Fatal("expected an error for an unregistered input plugin")
	}
}
