package shell

import (
	"context"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Runtime is the subset of the Wails runtime the shell drives. It lets the
// shell run against a fake in tests where no webview exists.
type Runtime interface {
	OpenFileDialog(ctx context.Context, opts runtime.OpenDialogOptions) (string, error)
	MessageDialog(ctx context.Context, opts runtime.MessageDialogOptions) (string, error)
	WindowShow(ctx context.Context)
	WindowHide(ctx context.Context)
	WindowReloadApp(ctx context.Context)
	WindowMinimise(ctx context.Context)
	WindowToggleMaximise(ctx context.Context)
	BrowserOpenURL(ctx context.Context, url string)
	Quit(ctx context.Context)
}

// WailsRuntime forwards to github.com/wailsapp/wails/v2/pkg/runtime.
type WailsRuntime struct{}

func (WailsRuntime) OpenFileDialog(ctx context.Context, opts runtime.OpenDialogOptions) (string, error) {
	return runtime.OpenFileDialog(ctx, opts)
}

func (WailsRuntime) MessageDialog(ctx context.Context, opts runtime.MessageDialogOptions) (string, error) {
	return runtime.MessageDialog(ctx, opts)
}

func (WailsRuntime) WindowShow(ctx context.Context)           { runtime.WindowShow(ctx) }
func (WailsRuntime) WindowHide(ctx context.Context)           { runtime.WindowHide(ctx) }
func (WailsRuntime) WindowReloadApp(ctx context.Context)      { runtime.WindowReloadApp(ctx) }
func (WailsRuntime) WindowMinimise(ctx context.Context)       { runtime.WindowMinimise(ctx) }
func (WailsRuntime) WindowToggleMaximise(ctx context.Context) { runtime.WindowToggleMaximise(ctx) }
func (WailsRuntime) BrowserOpenURL(ctx context.Context, url string) {
	runtime.BrowserOpenURL(ctx, url)
}
func (WailsRuntime) Quit(ctx context.Context) { runtime.Quit(ctx) }
