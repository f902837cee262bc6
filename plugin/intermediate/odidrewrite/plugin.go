package odidrewrite

import (
	"fmt"

	"github.com/CESNET/ipfixcol-sub004/pipeline"
	"github.com/CESNET/ipfixcol-sub004/plugin"
	"gopkg.in/yaml.v3"
)

// Plugin implements plugin.IntermediatePlugin for the ODID rewrite stage.
type Plugin struct{}

func (Plugin) Init(params []byte) (pipeline.IntermediateStage, error) {
	var cfg struct {
		Base uint32 `yaml:"base"`
	}
	if len(params) > 0 {
		if err := yaml.Unmarshal(params, &cfg); err != nil {
			return nil, fmt.Errorf("odidrewrite: %w", err)
		}
	}
	return New(cfg.Base), nil
}

var _ plugin.IntermediatePlugin = Plugin{}
