// Command aes67engine is a minimal host process around the engine's
// ABI: it wires up process configuration, structured logging, the
// Prometheus exporter, and a Shim, then idles until asked to stop. Real
// hosts embed the bassaes67 package directly; this binary exists so the
// engine can be run standalone for smoke-testing and metrics scraping.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	bassaes67 "github.com/casterplay/BassAES67-sub000"
	"github.com/casterplay/BassAES67-sub000/internal/config"
	"github.com/casterplay/BassAES67-sub000/internal/stats"

	"log/slog"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting aes67engine",
		"interface_ip", cfg.DefaultInterfaceIP,
		"stats_interval_ms", cfg.StatsIntervalMS,
		"metrics_listen_addr", cfg.MetricsListenAddr,
	)

	shim := bassaes67.NewShim(logger)
	shim.RegisterConnectionStateCallback(func(handle uint64, state stats.ConnectionState) {
		slog.Info("connection state changed", "handle", handle, "state", state.String())
	})

	var metricsSrv *http.Server
	if cfg.MetricsListenAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(stats.NewCollector(shim.Registry(), time.Now()))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		metricsSrv = &http.Server{
			Addr:         cfg.MetricsListenAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  30 * time.Second,
		}
		go func() {
			slog.Info("metrics server listening", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received shutdown signal", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var handles []uint64
	shim.Registry().ForEach(func(handle uint64, _ *stats.Stats) {
		handles = append(handles, handle)
	})
	for _, h := range handles {
		if err := shim.StopStream(h); err != nil {
			slog.Error("stream stop error", "handle", h, "error", err)
		}
	}
	shim.ClockReader().Stop()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}

	slog.Info("aes67engine stopped")
}
