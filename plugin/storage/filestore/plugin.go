package filestore

import (
	"fmt"

	"github.com/CESNET/ipfixcol-sub004/config"
	"github.com/CESNET/ipfixcol-sub004/pipeline"
	"github.com/CESNET/ipfixcol-sub004/plugin"
	"gopkg.in/yaml.v3"
)

// Plugin implements plugin.StoragePlugin, resolving spec.md §6.7's
// interval/align/base_dir from a config.OutputStorage's params. Interval
// uses config.Duration rather than time.Duration directly since yaml.v3 has
// no built-in parsing for a duration string such as "5m".
type Plugin struct{}

func (Plugin) Init(params []byte) (pipeline.StorageStage, error) {
	var cfg struct {
		BaseDir  string          `yaml:"base_dir"`
		Interval config.Duration `yaml:"interval"`
		Align    bool            `yaml:"align"`
	}
	if len(params) > 0 {
		if err := yaml.Unmarshal(params, &cfg); err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
	}
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("filestore: base_dir is required")
	}
	return New(Options{BaseDir: cfg.BaseDir, Interval: cfg.Interval.Duration(), Align: cfg.Align}), nil
}

var _ plugin.StoragePlugin = Plugin{}
