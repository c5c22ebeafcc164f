package shell

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
)

// AppOptions builds the Wails application for app. The window starts hidden
// and is revealed by Launch; pages are served by handler.
func AppOptions(app *App, handler http.Handler) *options.App {
	o := app.opts
	return &options.App{
		Title:             o.Title,
		Width:             valOr(o.Width, 1400),
		Height:            valOr(o.Height, 900),
		MinWidth:          o.MinWidth,
		MinHeight:         o.MinHeight,
		StartHidden:       true,
		HideWindowOnClose: o.KeepAliveOnClose,
		BackgroundColour:  &options.RGBA{R: 255, G: 255, B: 255, A: 1},
		AssetServer: &assetserver.Options{
			Handler: handler,
		},
		OnStartup:     app.Startup,
		OnBeforeClose: app.BeforeClose,
		OnShutdown:    app.Shutdown,
		Bind: []interface{}{
			NewBridge(app),
		},
		Logger:   NewWailsLogger(app.log),
		LogLevel: logger.INFO,
		Mac: &mac.Options{
			TitleBar: mac.TitleBarHiddenInset(),
		},
		Windows: &windows.Options{
			WebviewIsTransparent: false,
		},
		Debug: options.Debug{
			OpenInspectorOnStartup: o.DevTools,
		},
	}
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// WailsLogger routes the Wails runtime's own logging into slog.
type WailsLogger struct {
	log *slog.Logger
}

var _ logger.Logger = (*WailsLogger)(nil)

func NewWailsLogger(log *slog.Logger) *WailsLogger {
	if log == nil {
		log = slog.Default()
	}
	return &WailsLogger{log: log.With("component", "wails")}
}

func (l *WailsLogger) Print(message string)   { l.log.Info(message) }
func (l *WailsLogger) Trace(message string)   { l.log.Debug(message, "trace", true) }
func (l *WailsLogger) Debug(message string)   { l.log.Debug(message) }
func (l *WailsLogger) Info(message string)    { l.log.Info(message) }
func (l *WailsLogger) Warning(message string) { l.log.Warn(message) }
func (l *WailsLogger) Error(message string)   { l.log.Error(message) }

// Fatal logs and exits, as the Wails contract requires.
func (l *WailsLogger) Fatal(message string) {
	l.log.Error(fmt.Sprintf("fatal: %s", message))
	os.Exit(1)
}
