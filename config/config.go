// Package config loads the collector's YAML configuration surface, spec.md
// §6.7, grounded in the teacher's yaml.go pairing of a KnownFields(true)
// decoder with Must/non-Must helper variants. The external XML loader named
// in §6.7 is an upstream collaborator outside this module's scope; this
// package consumes an already-flattened YAML document instead, since the
// core is specified to "consume already-parsed configuration objects"
// (spec.md §9).
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// AnonymizationType selects the IP anonymization intermediate stage's
// algorithm, spec.md §6.7: "anonymization.type ∈ {truncation, cryptopan}".
type AnonymizationType string

const (
	AnonymizationNone       AnonymizationType = ""
	AnonymizationTruncation AnonymizationType = "truncation"
	AnonymizationCryptoPAN  AnonymizationType = "cryptopan"
)

// Anonymization configures the optional IP anonymization stage.
type Anonymization struct {
	Type AnonymizationType `yaml:"type,omitempty"`
	Key  string            `yaml:"key,omitempty"`
}

// TemplateLifetime is the UDP-source template refresh policy of spec.md
// §6.7, shared by the data and options template kinds.
type TemplateLifetime struct {
	Time   Duration `yaml:"time,omitempty"`
	Packet uint32   `yaml:"packet,omitempty"`
}

// Storage configures the file storage worker, spec.md §6.7.
type Storage struct {
	BaseDir  string   `yaml:"base_dir"`
	Interval Duration `yaml:"interval,omitempty"`
	Align    bool     `yaml:"align,omitempty"`
}

// Input configures one input plugin instance. Params is passed through
// verbatim (re-marshaled to YAML bytes) to the named plugin's Init, per
// plugin.InputPlugin.
type Input struct {
	Plugin string    `yaml:"plugin"`
	Params yaml.Node `yaml:"params,omitempty"`
}

// Intermediate configures one intermediate stage in chain order.
type Intermediate struct {
	Plugin string    `yaml:"plugin"`
	Params yaml.Node `yaml:"params,omitempty"`
}

// OutputStorage configures one storage plugin instance.
type OutputStorage struct {
	Plugin string    `yaml:"plugin"`
	Params yaml.Node `yaml:"params,omitempty"`
}

// marshalParams re-encodes a yaml.Node params block to bytes for a plugin's Init.
// A zero Node (Kind 0) means the document had no params key at all.
func marshalParams(n yaml.Node) ([]byte, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	return yaml.Marshal(&n)
}

// ParamBytes returns i's params re-encoded as YAML bytes.
func (i Input) ParamBytes() ([]byte, error) { return marshalParams(i.Params) }

// ParamBytes returns i's params re-encoded as YAML bytes.
func (i Intermediate) ParamBytes() ([]byte, error) { return marshalParams(i.Params) }

// ParamBytes returns o's params re-encoded as YAML bytes.
func (o OutputStorage) ParamBytes() ([]byte, error) { return marshalParams(o.Params) }

// Config is the root document. Pipeline topology (which plugins run and in
// what order) lives alongside the settings spec.md §6.7 enumerates, since
// both are "external collaborator" concerns the core consumes already
// parsed.
type Config struct {
	Storage                 Storage          `yaml:"storage"`
	Anonymization           Anonymization    `yaml:"anonymization,omitempty"`
	TemplateLifetime        TemplateLifetime `yaml:"template_lifetime,omitempty"`
	OptionsTemplateLifetime TemplateLifetime `yaml:"options_template_lifetime,omitempty"`
	ProfilesPath            string           `yaml:"profiles_path,omitempty"`
	QueueCapacity           int              `yaml:"queue_capacity,omitempty"`
	Inputs                  []Input          `yaml:"inputs"`
	Intermediates           []Intermediate   `yaml:"intermediates,omitempty"`
	Storages                []OutputStorage  `yaml:"storages"`
}

// Read parses a Config from r with strict field checking, matching the
// teacher's ReadYAML(r io.Reader) convention.
func Read(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// MustRead is Read, panicking on error, matching the teacher's
// MustReadYAML convention for call sites that treat a bad config file as
// fatal startup failure.
func MustRead(r io.Reader) Config {
	cfg, err := Read(r)
	if err != nil {
		panic(err)
	}
	return cfg
}

// ReadFile opens path and parses it as a Config.
func ReadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Write serializes cfg to w, matching the teacher's WriteYAML convention.
func Write(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return nil
}

// MustWrite is Write, panicking on error.
func MustWrite(w io.Writer, cfg Config) {
	if err := Write(w, cfg); err != nil {
		panic(err)
	}
}
