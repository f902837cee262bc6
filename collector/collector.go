// Package collector is the root facade wiring a template store, profile
// router, and pipeline.Pipeline into one running collector, replacing the
// teacher's flat top-level package (a decoding library with no process
// lifecycle of its own) with the service lifecycle spec.md describes: one or
// more input handles feeding a single pipeline, started and shut down as a
// unit.
package collector

import (
	"context"
	"fmt"
	"sync"

	"github.com/CESNET/ipfixcol-sub004/config"
	"github.com/CESNET/ipfixcol-sub004/decode"
	"github.com/CESNET/ipfixcol-sub004/obs"
	"github.com/CESNET/ipfixcol-sub004/pipeline"
	"github.com/CESNET/ipfixcol-sub004/plugin"
	"github.com/CESNET/ipfixcol-sub004/profile"
	"github.com/CESNET/ipfixcol-sub004/template"
)

// Collector owns one pipeline and the input handles feeding it.
type Collector struct {
	store    template.Store
	decaying *template.DecayingStore
	router   *profile.Router
	pipeline *pipeline.Pipeline
	handles  []plugin.InputHandle

	wg       sync.WaitGroup
	shutdown sync.Once
}

// New resolves cfg's plugin topology against reg and builds a Collector
// ready for Run. The template store is always wrapped in a DecayingStore,
// spec.md §6.7's UDP-source template refresh policy, configured from cfg's
// template_lifetime settings applied uniformly to every source group a
// preprocessor reports (a per-source override is out of this facade's
// scope; input plugins that need one can wrap DecayingStore.SetPolicy
// themselves).
func New(cfg config.Config, reg *config.Registry) (*Collector, error) {
	base := template.NewEphemeralStore()
	decaying := template.NewDecayingStore(base)
	decaying.SetDefaultPolicy(template.RefreshPolicy{
		Timeout:     cfg.TemplateLifetime.Time.Duration(),
		PacketLimit: cfg.TemplateLifetime.Packet,
	})
	router := profile.NewRouter()

	pcfg, handles, err := config.Build(cfg, reg, decaying, router)
	if err != nil {
		return nil, fmt.Errorf("collector: %w", err)
	}
	if len(handles) == 0 {
		return nil, fmt.Errorf("collector: no input plugins configured")
	}

	p := pipeline.New(pcfg)

	return &Collector{
		store:    decaying,
		decaying: decaying,
		router:   router,
		pipeline: p,
		handles:  handles,
	}, nil
}

// LoadProfiles installs root as the active routing tree via
// profile.Router.Load, without a diff and without callbacks. Call it before
// Run for the first load; ReloadProfiles swaps the tree later with
// create/update/delete callbacks.
func (c *Collector) LoadProfiles(root *profile.Profile) {
	c.router.Load(root)
}

// ReloadProfiles diffs newRoot against the currently active tree, spec.md
// §6.5: "Reconfiguration (tree swap) is triggered when a storage stage
// encounters a channel it does not know."
func (c *Collector) ReloadProfiles(newRoot *profile.Profile, cb profile.Callbacks) {
	c.router.Reload(newRoot, cb)
}

// Run starts the pipeline and one reader goroutine per input handle,
// blocking until ctx is canceled or every input handle reports closure. It
// always performs an orderly InitiateShutdown before returning.
func (c *Collector) Run(ctx context.Context) error {
	pipelineDone := make(chan struct{})
	go func() {
		c.pipeline.Run()
		close(pipelineDone)
	}()

	for i, h := range c.handles {
		c.wg.Add(1)
		go c.readLoop(ctx, i, h)
	}

	initiate := func() { c.shutdown.Do(c.pipeline.InitiateShutdown) }

	go func() {
		<-ctx.Done()
		initiate()
	}()

	c.wg.Wait()
	initiate()
	<-pipelineDone
	return ctx.Err()
}

// readLoop mirrors the teacher's udp.go readLoop: pull packets until the
// handle reports closure or a fatal error, submitting each one to the
// pipeline for decode and routing.
func (c *Collector) readLoop(ctx context.Context, idx int, h plugin.InputHandle) {
	defer c.wg.Done()
	log := obs.FromContext(ctx, "input", idx)

	for {
		select {
		case <-ctx.Done():
			h.Close()
			return
		default:
		}

		buf, info, status, sig, err := h.GetPacket()
		switch sig {
		case plugin.SignalClosed:
			c.pipeline.Submit(nil, info, decode.StatusClosed)
			return
		case plugin.SignalError:
			log.Error(err, "input handle reported an error")
			continue
		case plugin.SignalIntr:
			continue
		}
		if err != nil {
			log.Error(err, "input handle returned an error without a signal")
			continue
		}

		c.pipeline.Submit(buf, info, status)
	}
}

// Close releases every input handle. Call after Run returns.
func (c *Collector) Close() error {
	var firstErr error
	for _, h := range c.handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
