package main

import (
	"fmt"

	"github.com/wailsapp/wails/v2"

	"github.com/loykin/menu2img-desktop/internal/config"
	"github.com/loykin/menu2img-desktop/internal/shell"
)

func shellOptions(cfg *config.Config, outputDir string) shell.Options {
	return shell.Options{
		Title:            cfg.Window.Title,
		Version:          version,
		BackendURL:       cfg.BackendURL(),
		ImageExtensions:  cfg.Dialog.ImageExtensions,
		DialogTitle:      cfg.Dialog.Title,
		OutputDir:        outputDir,
		Width:            cfg.Window.Width,
		Height:           cfg.Window.Height,
		MinWidth:         cfg.Window.MinWidth,
		MinHeight:        cfg.Window.MinHeight,
		DevTools:         cfg.Window.DevTools,
		KeepAliveOnClose: shell.DefaultKeepAliveOnClose(),
	}
}

// runDesktop opens the window and blocks until the app quits. A failed
// backend start is returned so main exits with status 1.
func runDesktop(flags *GlobalFlags) error {
	h, err := newHost(flags)
	if err != nil {
		return err
	}
	defer h.close(false)

	out, err := h.cfg.OutputPath()
	if err != nil {
		h.log.Warn("Output folder unavailable", "error", err)
		out = ""
	}
	app := shell.NewApp(h.sup, shellOptions(h.cfg, out), nil, h.log)
	proxy, err := shell.NewProxy(h.cfg.BackendURL(), h.sup.Ready, shell.DesktopScript(), h.log)
	if err != nil {
		return err
	}
	if err := wails.Run(shell.AppOptions(app, proxy)); err != nil {
		return fmt.Errorf("run window: %w", err)
	}
	return app.StartupError()
}
