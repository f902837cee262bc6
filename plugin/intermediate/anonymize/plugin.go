package anonymize

import (
	"fmt"

	"github.com/CESNET/ipfixcol-sub004/pipeline"
	"github.com/CESNET/ipfixcol-sub004/plugin"
	"gopkg.in/yaml.v3"
)

// Plugin implements plugin.IntermediatePlugin, resolving spec.md §6.7's
// anonymization.{type,key} from a config.Intermediate's params.
type Plugin struct{}

func (Plugin) Init(params []byte) (pipeline.IntermediateStage, error) {
	var cfg struct {
		Type string `yaml:"type"`
		Key  string `yaml:"key"`
	}
	if len(params) > 0 {
		if err := yaml.Unmarshal(params, &cfg); err != nil {
			return nil, fmt.Errorf("anonymize: %w", err)
		}
	}

	var mode Mode
	switch cfg.Type {
	case "", "cryptopan":
		mode = ModeCryptoPAN
	case "truncation":
		mode = ModeTruncation
	default:
		return nil, fmt.Errorf("anonymize: unknown type %q", cfg.Type)
	}

	return New(mode, []byte(cfg.Key))
}

var _ plugin.IntermediatePlugin = Plugin{}
