package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/loykin/menu2img-desktop/internal/supervisor"
)

type fakeBackend struct {
	startErr error
	stops    atomic.Int32
	ready    atomic.Bool
}

func (b *fakeBackend) Start(context.Context) error {
	if b.startErr != nil {
		return b.startErr
	}
	b.ready.Store(true)
	return nil
}

func (b *fakeBackend) Stop() error {
	b.stops.Add(1)
	return nil
}

func (b *fakeBackend) Ready() bool { return b.ready.Load() }

type fakeRuntime struct {
	mu       sync.Mutex
	calls    []string
	dialogs  []runtime.MessageDialogOptions
	opens    []runtime.OpenDialogOptions
	urls     []string
	filePath  string
	fileErr   error
	dialogErr error
}

func (r *fakeRuntime) record(name string) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
}

func (r *fakeRuntime) OpenFileDialog(_ context.Context, o runtime.OpenDialogOptions) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "open")
	r.opens = append(r.opens, o)
	return r.filePath, r.fileErr
}

func (r *fakeRuntime) MessageDialog(_ context.Context, o runtime.MessageDialogOptions) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "dialog")
	r.dialogs = append(r.dialogs, o)
	if r.dialogErr != nil {
		return "", r.dialogErr
	}
	return "Ok", nil
}

func (r *fakeRuntime) WindowShow(context.Context)           { r.record("show") }
func (r *fakeRuntime) WindowHide(context.Context)           { r.record("hide") }
func (r *fakeRuntime) WindowReloadApp(context.Context)      { r.record("reload") }
func (r *fakeRuntime) WindowMinimise(context.Context)       { r.record("minimise") }
func (r *fakeRuntime) WindowToggleMaximise(context.Context) { r.record("maximise") }
func (r *fakeRuntime) Quit(context.Context)                 { r.record("quit") }

func (r *fakeRuntime) BrowserOpenURL(_ context.Context, u string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "browser")
	r.urls = append(r.urls, u)
}

func (r *fakeRuntime) Calls() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.calls, ",")
}

func (r *fakeRuntime) Dialogs() []runtime.MessageDialogOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runtime.MessageDialogOptions(nil), r.dialogs...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(b Backend, rt Runtime, opts Options) *App {
	return NewApp(b, opts, rt, quietLogger())
}

func TestLaunch_ReadyShowsWindow(t *testing.T) {
	b := &fakeBackend{}
	rt := &fakeRuntime{}
	a := newTestApp(b, rt, Options{})
	if err := a.Launch(context.Background()); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if got := rt.Calls(); got != "reload,show" {
		t.Fatalf("calls = %q", got)
	}
	if !a.WindowOpen() || a.StartupError() != nil {
		t.Fatalf("window should be open without startup error")
	}
	select {
	case <-a.Launched():
	default:
		t.Fatalf("launched not closed")
	}
}

func TestLaunch_FailureShowsOneDialogAndQuits(t *testing.T) {
	cause := &supervisor.TimeoutError{After: 10 * time.Second, Marker: "Running on http://0.0.0.0:5051"}
	b := &fakeBackend{startErr: cause}
	rt := &fakeRuntime{}
	a := newTestApp(b, rt, Options{})

	err := a.Launch(context.Background())
	if !errors.Is(err, supervisor.ErrTimeout) {
		t.Fatalf("err = %v", err)
	}
	if got := rt.Calls(); got != "dialog,quit" {
		t.Fatalf("calls = %q", got)
	}
	d := rt.Dialogs()
	if len(d) != 1 || d[0].Title != StartupErrorTitle || d[0].Type != runtime.ErrorDialog {
		t.Fatalf("dialogs = %+v", d)
	}
	if !strings.Contains(d[0].Message, "Python") || !strings.Contains(d[0].Message, "readiness") {
		t.Fatalf("message = %q", d[0].Message)
	}
	if !errors.Is(a.StartupError(), supervisor.ErrTimeout) || a.WindowOpen() {
		t.Fatalf("startup error not recorded")
	}
}

func TestLaunch_SpawnErrorMessage(t *testing.T) {
	cause := &supervisor.SpawnError{Command: "python3 web/app.py", Err: fmt.Errorf("exec: not found")}
	rt := &fakeRuntime{}
	a := newTestApp(&fakeBackend{startErr: cause}, rt, Options{})
	_ = a.Launch(context.Background())
	d := rt.Dialogs()
	if len(d) != 1 || !strings.Contains(d[0].Message, "could not be launched") {
		t.Fatalf("dialogs = %+v", d)
	}
}

func TestStartup_LaunchesInBackground(t *testing.T) {
	rt := &fakeRuntime{}
	a := newTestApp(&fakeBackend{}, rt, Options{})
	a.Startup(context.Background())
	select {
	case <-a.Launched():
	case <-time.After(2 * time.Second):
		t.Fatalf("launch did not complete")
	}
	if !a.WindowOpen() {
		t.Fatalf("window should be open")
	}
}

func TestShutdown_StopsBackendOnce(t *testing.T) {
	b := &fakeBackend{}
	a := newTestApp(b, &fakeRuntime{}, Options{})
	a.Shutdown(context.Background())
	a.Shutdown(context.Background())
	if n := b.stops.Load(); n != 1 {
		t.Fatalf("stop called %d times", n)
	}
}

func TestRequestClose(t *testing.T) {
	t.Run("keep alive hides", func(t *testing.T) {
		rt := &fakeRuntime{}
		a := newTestApp(&fakeBackend{}, rt, Options{KeepAliveOnClose: true})
		_ = a.Launch(context.Background())
		a.RequestClose()
		if got := rt.Calls(); got != "reload,show,hide" {
			t.Fatalf("calls = %q", got)
		}
		if a.WindowOpen() {
			t.Fatalf("window should be closed")
		}
	})
	t.Run("otherwise quits", func(t *testing.T) {
		rt := &fakeRuntime{}
		a := newTestApp(&fakeBackend{}, rt, Options{})
		a.RequestClose()
		if got := rt.Calls(); got != "quit" {
			t.Fatalf("calls = %q", got)
		}
	})
}

func TestBeforeClose_AllowsClose(t *testing.T) {
	a := newTestApp(&fakeBackend{}, &fakeRuntime{}, Options{})
	_ = a.Launch(context.Background())
	if a.BeforeClose(context.Background()) {
		t.Fatalf("close should not be prevented")
	}
	if a.WindowOpen() {
		t.Fatalf("window should be marked closed")
	}
}

func TestNewApp_Defaults(t *testing.T) {
	a := NewApp(&fakeBackend{}, Options{}, nil, nil)
	if _, ok := a.rt.(WailsRuntime); !ok {
		t.Fatalf("runtime = %T", a.rt)
	}
	if a.opts.Title != "Menu2Img" || a.opts.DialogTitle != "Select Menu Image" {
		t.Fatalf("opts = %+v", a.opts)
	}
}
