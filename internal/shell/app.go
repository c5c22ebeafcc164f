// Package shell hosts the backend's web UI in a Wails window and relays the
// page's native requests (file dialog, message boxes, window controls).
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	goruntime "runtime"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/loykin/menu2img-desktop/internal/supervisor"
)

// StartupErrorTitle is the title of the fatal startup dialog.
const StartupErrorTitle = "Startup Error"

const startupHint = "Failed to start the Python backend. Please make sure Python and the required packages are installed."

// Backend is the lifecycle the shell needs from the supervisor.
type Backend interface {
	Start(ctx context.Context) error
	Stop() error
	Ready() bool
}

// Options describe the host window and the page bridge.
type Options struct {
	Title           string
	Version         string
	BackendURL      string
	ImageExtensions []string
	DialogTitle     string
	OutputDir       string
	Width           int
	Height          int
	MinWidth        int
	MinHeight       int
	DevTools        bool
	// KeepAliveOnClose hides the window instead of quitting when it is
	// closed, matching platforms whose apps stay in the dock.
	KeepAliveOnClose bool
}

// App owns the backend, the window runtime and the quit policy.
type App struct {
	opts    Options
	backend Backend
	rt      Runtime
	log     *slog.Logger

	mu         sync.Mutex
	ctx        context.Context
	startErr   error
	windowOpen bool
	stopOnce   sync.Once
	launchOnce sync.Once
	launched   chan struct{}
}

// NewApp wires the shell; rt may be nil to use the Wails runtime.
func NewApp(b Backend, opts Options, rt Runtime, log *slog.Logger) *App {
	if rt == nil {
		rt = WailsRuntime{}
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Title == "" {
		opts.Title = "Menu2Img"
	}
	if opts.DialogTitle == "" {
		opts.DialogTitle = "Select Menu Image"
	}
	return &App{
		opts:     opts,
		backend:  b,
		rt:       rt,
		log:      log,
		ctx:      context.Background(),
		launched: make(chan struct{}),
	}
}

// DefaultKeepAliveOnClose reports whether the current platform keeps apps
// running after their last window closes.
func DefaultKeepAliveOnClose() bool { return goruntime.GOOS == "darwin" }

// Startup is the Wails OnStartup hook. The window starts hidden; the backend
// is launched in the background so the Wails event loop keeps running.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()
	go func() { _ = a.Launch(ctx) }()
}

// Launch starts the backend and reveals the window once it is ready.
// On failure it shows one blocking error dialog and requests quit.
func (a *App) Launch(ctx context.Context) error {
	defer a.launchOnce.Do(func() { close(a.launched) })
	if err := a.backend.Start(ctx); err != nil {
		a.fail(ctx, err)
		return err
	}
	a.log.Info("Opening window", "url", a.opts.BackendURL)
	a.rt.WindowReloadApp(ctx)
	a.rt.WindowShow(ctx)
	a.mu.Lock()
	a.windowOpen = true
	a.mu.Unlock()
	return nil
}

// Launched is closed once Launch has resolved either way.
func (a *App) Launched() <-chan struct{} { return a.launched }

func (a *App) fail(ctx context.Context, err error) {
	a.mu.Lock()
	a.startErr = err
	a.mu.Unlock()
	a.log.Error("Failed to start backend", "error", err)

	_, derr := a.rt.MessageDialog(ctx, runtime.MessageDialogOptions{
		Type:    runtime.ErrorDialog,
		Title:   StartupErrorTitle,
		Message: startupMessage(err),
	})
	if derr != nil {
		a.log.Error("Failed to show startup error dialog", "error", derr)
	}
	a.rt.Quit(ctx)
}

func startupMessage(err error) string {
	detail := err.Error()
	switch {
	case errors.Is(err, supervisor.ErrSpawn):
		detail = "The interpreter could not be launched: " + detail
	case errors.Is(err, supervisor.ErrTimeout):
		detail = "The backend did not report readiness in time: " + detail
	}
	return fmt.Sprintf("%s\n\n%s", startupHint, detail)
}

// StartupError returns the error that aborted startup, if any.
func (a *App) StartupError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startErr
}

// BeforeClose is the Wails OnBeforeClose hook. Returning false lets the
// close proceed; keep-alive platforms never reach it because the window is
// hidden on close.
func (a *App) BeforeClose(ctx context.Context) bool {
	a.mu.Lock()
	a.windowOpen = false
	a.mu.Unlock()
	a.log.Debug("Window closing")
	return false
}

// Shutdown is the Wails OnShutdown hook; the backend is stopped exactly once.
func (a *App) Shutdown(ctx context.Context) {
	a.stopBackend()
}

func (a *App) stopBackend() {
	a.stopOnce.Do(func() {
		if err := a.backend.Stop(); err != nil {
			a.log.Warn("Failed to stop backend", "error", err)
		}
	})
}

// RequestClose closes the window: hidden on keep-alive platforms, otherwise
// the application quits and Shutdown stops the backend.
func (a *App) RequestClose() {
	ctx := a.context()
	if a.opts.KeepAliveOnClose {
		a.mu.Lock()
		a.windowOpen = false
		a.mu.Unlock()
		a.rt.WindowHide(ctx)
		return
	}
	a.rt.Quit(ctx)
}

// WindowOpen reports whether the window is currently shown.
func (a *App) WindowOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.windowOpen
}

func (a *App) context() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctx
}
