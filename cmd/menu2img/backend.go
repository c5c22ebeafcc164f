package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/loykin/menu2img-desktop/internal/process"
	"github.com/loykin/menu2img-desktop/internal/supervisor"
)

// runBackend supervises the backend without a window until a signal arrives
// or the backend exits on its own.
func runBackend(ctx context.Context, flags *GlobalFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	exited := make(chan process.Status, 1)
	h, err := newHost(flags, supervisor.WithExitHandler(func(st process.Status) {
		exited <- st
	}))
	if err != nil {
		return err
	}
	defer h.close(true)

	if err := h.sup.Start(ctx); err != nil {
		return fmt.Errorf("start backend: %w", err)
	}
	h.log.Info("Backend serving", "url", h.cfg.BackendURL())

	select {
	case <-ctx.Done():
		h.log.Info("Shutting down", "reason", context.Cause(ctx))
		return nil
	case st := <-exited:
		return fmt.Errorf("backend exited with code %d", st.ExitCode)
	}
}
