package config

import (
	"fmt"

	"github.com/CESNET/ipfixcol-sub004/decode"
	"github.com/CESNET/ipfixcol-sub004/pipeline"
	"github.com/CESNET/ipfixcol-sub004/plugin"
	"github.com/CESNET/ipfixcol-sub004/profile"
	"github.com/CESNET/ipfixcol-sub004/template"
)

// Build resolves cfg's pipeline topology against reg into a live
// pipeline.Config, ready for pipeline.New. Input handles are returned
// separately since a caller drives each one with its own GetPacket loop
// feeding Pipeline.Submit, rather than the pipeline owning them directly.
//
// Plugin initialization errors abort startup, spec.md §7: "Plugin
// initialization errors abort startup."
func Build(cfg Config, reg *Registry, store template.Store, router *profile.Router) (pipeline.Config, []plugin.InputHandle, error) {
	var handles []plugin.InputHandle
	for _, in := range cfg.Inputs {
		p, ok := reg.Input(in.Plugin)
		if !ok {
			return pipeline.Config{}, nil, fmt.Errorf("config: unknown input plugin %q", in.Plugin)
		}
		params, err := in.ParamBytes()
		if err != nil {
			return pipeline.Config{}, nil, fmt.Errorf("config: input %q: %w", in.Plugin, err)
		}
		h, err := p.Init(params)
		if err != nil {
			return pipeline.Config{}, nil, fmt.Errorf("config: input %q: init: %w", in.Plugin, err)
		}
		handles = append(handles, h)
	}

	var stages []pipeline.IntermediateStage
	for _, mid := range cfg.Intermediates {
		p, ok := reg.Intermediate(mid.Plugin)
		if !ok {
			return pipeline.Config{}, nil, fmt.Errorf("config: unknown intermediate plugin %q", mid.Plugin)
		}
		params, err := mid.ParamBytes()
		if err != nil {
			return pipeline.Config{}, nil, fmt.Errorf("config: intermediate %q: %w", mid.Plugin, err)
		}
		stage, err := p.Init(params)
		if err != nil {
			return pipeline.Config{}, nil, fmt.Errorf("config: intermediate %q: init: %w", mid.Plugin, err)
		}
		stages = append(stages, stage)
	}

	var storages []pipeline.StorageStage
	for _, out := range cfg.Storages {
		p, ok := reg.Storage(out.Plugin)
		if !ok {
			return pipeline.Config{}, nil, fmt.Errorf("config: unknown storage plugin %q", out.Plugin)
		}
		params, err := out.ParamBytes()
		if err != nil {
			return pipeline.Config{}, nil, fmt.Errorf("config: storage %q: %w", out.Plugin, err)
		}
		storage, err := p.Init(params)
		if err != nil {
			return pipeline.Config{}, nil, fmt.Errorf("config: storage %q: init: %w", out.Plugin, err)
		}
		storages = append(storages, storage)
	}

	pcfg := pipeline.Config{
		Store:         store,
		Router:        router,
		V5Options:     decode.NormalizeV5Options{},
		Stages:        stages,
		Storages:      storages,
		QueueCapacity: cfg.QueueCapacity,
	}
	return pcfg, handles, nil
}
