package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/menu2img-desktop/internal/config"
	"github.com/loykin/menu2img-desktop/internal/metrics"
	"github.com/loykin/menu2img-desktop/internal/server"
	"github.com/loykin/menu2img-desktop/internal/supervisor"
)

// host is the supervised backend plus its ambient services, shared by the
// desktop and headless commands.
type host struct {
	cfg     *config.Config
	log     *slog.Logger
	sup     *supervisor.Supervisor
	sampler *metrics.ResourceSampler
	diag    *http.Server
	cancel  context.CancelFunc
}

func loadConfig(flags *GlobalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if flags.LogLevel != "" {
		cfg.Log.Slog.Level = flags.LogLevel
	}
	return cfg, nil
}

func newHost(flags *GlobalFlags, opts ...supervisor.Option) (*host, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	log := cfg.Log.NewSlogger()
	slog.SetDefault(log)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("Failed to register metrics", "error", err)
	}

	sc, err := cfg.SupervisorConfig()
	if err != nil {
		return nil, err
	}
	name := sc.Process.Name
	stdout, stderr, err := cfg.Log.ProcessWriters(name)
	if err != nil {
		return nil, err
	}
	sopts := []supervisor.Option{
		supervisor.WithLogger(log),
		supervisor.WithOutputLogger(cfg.Log.NewProcessLogger(name)),
		supervisor.WithOutputWriters(stdout, stderr),
	}
	sup := supervisor.New(sc, append(sopts, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	sampler := metrics.NewResourceSampler(cfg.Diagnostics.SampleInterval, sup.PID)
	sampler.Start(ctx)

	h := &host{cfg: cfg, log: log, sup: sup, sampler: sampler, cancel: cancel}
	if cfg.Diagnostics.Listen != "" {
		r := server.NewRouter(sup, "", server.WithResources(sampler), server.WithVersion(version))
		srv, err := server.NewServer(cfg.Diagnostics.Listen, r, log)
		if err != nil {
			// diagnostics are optional; the app keeps working without them
			log.Warn("Diagnostics server disabled", "listen", cfg.Diagnostics.Listen, "error", err)
		} else {
			h.diag = srv
		}
	}
	return h, nil
}

// close stops the backend and the ambient services. With wait set the
// backend gets its stop grace before being killed; otherwise it is only
// signalled.
func (h *host) close(wait bool) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Backend.StopGrace+2*time.Second)
	defer cancel()
	if wait {
		if err := h.sup.Shutdown(ctx); err != nil {
			h.log.Warn("Backend shutdown failed", "error", err)
		}
	} else if err := h.sup.Stop(); err != nil {
		h.log.Warn("Failed to stop backend", "error", err)
	}
	h.sampler.Stop()
	h.cancel()
	if err := server.Shutdown(ctx, h.diag); err != nil {
		h.log.Warn("Diagnostics server shutdown failed", "error", err)
	}
}
