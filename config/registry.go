package config

import "github.com/CESNET/ipfixcol-sub004/plugin"

// Registry maps the plugin names used in Config.Inputs/Intermediates/
// Storages to the factories that build them, so the root facade can resolve
// a parsed Config into live plugin instances without this package needing
// to import every plugin package itself.
type Registry struct {
	inputs        map[string]plugin.InputPlugin
	intermediates map[string]plugin.IntermediatePlugin
	storages      map[string]plugin.StoragePlugin
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		inputs:        make(map[string]plugin.InputPlugin),
		intermediates: make(map[string]plugin.IntermediatePlugin),
		storages:      make(map[string]plugin.StoragePlugin),
	}
}

func (r *Registry) RegisterInput(name string, p plugin.InputPlugin) {
	r.inputs[name] = p
}

func (r *Registry) RegisterIntermediate(name string, p plugin.IntermediatePlugin) {
	r.intermediates[name] = p
}

func (r *Registry) RegisterStorage(name string, p plugin.StoragePlugin) {
	r.storages[name] = p
}

func (r *Registry) Input(name string) (plugin.InputPlugin, bool) {
	p, ok := r.inputs[name]
	return p, ok
}

func (r *Registry) Intermediate(name string) (plugin.IntermediatePlugin, bool) {
	p, ok := r.intermediates[name]
	return p, ok
}

func (r *Registry) Storage(name string) (plugin.StoragePlugin, bool) {
	p, ok := r.storages[name]
	return p, ok
}
