// Command ipfixcol runs the collector as a standalone process, grounded in
// the cmd/collector entrypoint style of the pack's other collector repo:
// flags for the essentials, everything else from a config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/CESNET/ipfixcol-sub004/collector"
	"github.com/CESNET/ipfixcol-sub004/config"
	"github.com/CESNET/ipfixcol-sub004/obs"
	"github.com/CESNET/ipfixcol-sub004/plugin/input/udpin"
	"github.com/CESNET/ipfixcol-sub004/plugin/intermediate/anonymize"
	"github.com/CESNET/ipfixcol-sub004/plugin/intermediate/odidrewrite"
	"github.com/CESNET/ipfixcol-sub004/plugin/storage/filestore"
	"github.com/go-logr/logr/funcr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "/etc/ipfixcol/config.yaml", "path to the collector's YAML configuration")
	metricsAddr := flag.String("metrics-addr", ":9191", "address to serve Prometheus metrics on")
	flag.Parse()

	obs.SetLogger(funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{}))
	log := obs.FromContext(context.Background(), "component", "main")

	cfg, err := config.ReadFile(*configPath)
	if err != nil {
		log.Error(err, "failed to read configuration", "path", *configPath)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	obs.MustRegisterAll(reg)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.Error(err, "metrics server stopped")
		}
	}()

	plugins := config.NewRegistry()
	plugins.RegisterInput("udp", udpin.Plugin{})
	plugins.RegisterIntermediate("anonymize", anonymize.Plugin{})
	plugins.RegisterIntermediate("odid_rewrite", odidrewrite.Plugin{})
	plugins.RegisterStorage("filestore", filestore.Plugin{})

	c, err := collector.New(cfg, plugins)
	if err != nil {
		log.Error(err, "failed to build the collector")
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("collector starting", "config", *configPath, "metrics_addr", *metricsAddr)
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error(err, "collector exited with an error")
		os.Exit(1)
	}
	log.Info("collector stopped")
}
