package config

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
storage:
  base_dir: /var/lib/ipfixcol
  interval: 5m
  align: true
anonymization:
  type: cryptopan
  key: "a fixed pseudonymization key"
template_lifetime:
  time: 30m
  packet: 1000
profiles_path: /etc/ipfixcol/profiles.yaml
queue_capacity: 128
inputs:
  - plugin: udp
    params:
      bind_addr: "0.0.0.0:4739"
intermediates:
  - plugin: anonymize
storages:
  - plugin: filestore
    params:
      base_dir: /var/lib/ipfixcol
`

func TestReadParsesKnownFields(t *testing.T) {
	cfg, err := Read(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.BaseDir != "/var/lib/ipfixcol" {
		t.Fatalf("unexpected base dir %q", cfg.Storage.BaseDir)
	}
	if cfg.Storage.Interval.Duration() != 5*time.Minute {
		t.Fatalf("unexpected interval %v", cfg.Storage.Interval)
	}
	if !cfg.Storage.Align {
		t.Fatal("expected align to be true")
	}
	if cfg.Anonymization.Type != AnonymizationCryptoPAN {
		t.Fatalf("unexpected anonymization type %q", cfg.Anonymization.Type)
	}
	if cfg.TemplateLifetime.Time.Duration() != 30*time.Minute || cfg.TemplateLifetime.Packet != 1000 {
		t.Fatalf("unexpected template lifetime %+v", cfg.TemplateLifetime)
	}
	if len(cfg.Inputs) != 1 || cfg.Inputs[0].Plugin != "udp" {
		t.Fatalf("unexpected inputs %+v", cfg.Inputs)
	}
	if len(cfg.Intermediates) != 1 || cfg.Intermediates[0].Plugin != "anonymize" {
		t.Fatalf("unexpected intermediates %+v", cfg.Intermediates)
	}
	if len(cfg.Storages) != 1 || cfg.Storages[0].Plugin != "filestore" {
		t.Fatalf("unexpected storages %+v", cfg.Storages)
	}
}

func TestReadRejectsUnknownField(t *testing.T) {
	_, err := Read(strings.NewReader("storage:\n  base_dir: /tmp\nbogus_field: 1\ninputs: []\nstorages: []\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown top-level field")
	}
}

func TestParamBytesRoundTrips(t *testing.T) {
	cfg, err := Read(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	b, err := cfg.Inputs[0].ParamBytes()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "bind_addr") {
		t.Fatalf("expected params to round-trip bind_addr, got %q", b)
	}
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	cfg, err := Read(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, cfg); err != nil {
		t.Fatal(err)
	}
	cfg2, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if cfg2.Storage.BaseDir != cfg.Storage.BaseDir || cfg2.Storage.Interval != cfg.Storage.Interval {
		t.Fatalf("round trip mismatch: %+v vs %+v", cfg2.Storage, cfg.Storage)
	}
}
