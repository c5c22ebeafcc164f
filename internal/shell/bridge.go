package shell

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// MaxFileSize caps ReadFile; the backend rejects larger uploads anyway.
const MaxFileSize = 16 << 20

var (
	ErrUnsafePath     = errors.New("path must be absolute and clean")
	ErrFileType       = errors.New("file type not allowed")
	ErrFileTooLarge   = errors.New("file too large")
	ErrNoOutputFolder = errors.New("output folder not configured")
)

// FilePayload is a selected file handed to the page as base64.
type FilePayload struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Data     string `json:"data"`
}

// Bridge is bound to the page as window.go.shell.Bridge. Every method is a
// page-initiated request; the page has no other way into the host.
type Bridge struct {
	app *App
}

func NewBridge(app *App) *Bridge { return &Bridge{app: app} }

// SelectFile opens the native image picker. Cancelling yields "" and no error.
func (b *Bridge) SelectFile() (string, error) {
	a := b.app
	path, err := a.rt.OpenFileDialog(a.context(), runtime.OpenDialogOptions{
		Title:   a.opts.DialogTitle,
		Filters: []runtime.FileFilter{imageFilter(a.opts.ImageExtensions)},
	})
	if err != nil {
		b.reportDialogError("File Selection Error", err)
		return "", err
	}
	if path == "" {
		a.log.Debug("File selection cancelled")
	}
	return path, nil
}

// ShowError shows a blocking error message box.
func (b *Bridge) ShowError(title, message string) error {
	return b.message(runtime.ErrorDialog, title, message)
}

// ShowInfo shows a blocking informational message box.
func (b *Bridge) ShowInfo(title, message string) error {
	return b.message(runtime.InfoDialog, title, message)
}

func (b *Bridge) message(kind runtime.DialogType, title, message string) error {
	a := b.app
	_, err := a.rt.MessageDialog(a.context(), runtime.MessageDialogOptions{
		Type:    kind,
		Title:   title,
		Message: message,
	})
	if err != nil {
		b.reportDialogError(title, err)
	}
	return err
}

// AppVersion returns the host version.
func (b *Bridge) AppVersion() string { return b.app.opts.Version }

// Platform returns the host OS in Go's naming (darwin, linux, windows).
func (b *Bridge) Platform() string { return goruntime.GOOS }

func (b *Bridge) Minimize() { b.app.rt.WindowMinimise(b.app.context()) }

// Maximize toggles between maximised and normal size.
func (b *Bridge) Maximize() { b.app.rt.WindowToggleMaximise(b.app.context()) }

func (b *Bridge) Close() { b.app.RequestClose() }

// OpenOutputFolder reveals the folder with generated images in the OS file browser.
func (b *Bridge) OpenOutputFolder() error {
	a := b.app
	dir := a.opts.OutputDir
	if dir == "" {
		b.reportDialogError("Open Output Folder", ErrNoOutputFolder)
		return ErrNoOutputFolder
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		b.reportDialogError("Open Output Folder", err)
		return err
	}
	p := filepath.ToSlash(dir)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	a.log.Info("Opening output folder", "dir", dir)
	a.rt.BrowserOpenURL(a.context(), u.String())
	return nil
}

// ReadFile returns the content of a file picked through SelectFile so the
// page can upload it. Only absolute image paths up to MaxFileSize are served.
func (b *Bridge) ReadFile(path string) (FilePayload, error) {
	p, err := b.readFile(path)
	if err != nil {
		b.reportDialogError("File Selection Error", err)
	}
	return p, err
}

func (b *Bridge) readFile(path string) (FilePayload, error) {
	if !isSafeAbsPath(path) {
		return FilePayload{}, fmt.Errorf("%w: %q", ErrUnsafePath, path)
	}
	if !hasExtension(path, b.app.opts.ImageExtensions) {
		return FilePayload{}, fmt.Errorf("%w: %s", ErrFileType, filepath.Ext(path))
	}
	fi, err := os.Stat(path)
	if err != nil {
		return FilePayload{}, err
	}
	if fi.IsDir() {
		return FilePayload{}, fmt.Errorf("%s is a directory", path)
	}
	if fi.Size() > MaxFileSize {
		return FilePayload{}, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, fi.Size())
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return FilePayload{}, err
	}
	return FilePayload{
		Name:     filepath.Base(path),
		MimeType: mimetype.Detect(data).String(),
		Size:     int64(len(data)),
		Data:     base64.StdEncoding.EncodeToString(data),
	}, nil
}

// reportDialogError logs a failed native interaction and surfaces it as a
// non-fatal message box.
func (b *Bridge) reportDialogError(title string, err error) {
	a := b.app
	a.log.Error("Dialog error", "title", title, "error", err)
	if _, derr := a.rt.MessageDialog(a.context(), runtime.MessageDialogOptions{
		Type:    runtime.ErrorDialog,
		Title:   title,
		Message: err.Error(),
	}); derr != nil {
		a.log.Error("Failed to show error dialog", "error", derr)
	}
}

func imageFilter(exts []string) runtime.FileFilter {
	patterns := make([]string, 0, len(exts))
	for _, e := range exts {
		patterns = append(patterns, "*."+strings.TrimPrefix(strings.ToLower(e), "."))
	}
	pattern := strings.Join(patterns, ";")
	return runtime.FileFilter{DisplayName: "Images (" + pattern + ")", Pattern: pattern}
}

func hasExtension(path string, exts []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range exts {
		if ext != "" && ext == strings.TrimPrefix(strings.ToLower(e), ".") {
			return true
		}
	}
	return false
}

// isSafeAbsPath ensures the provided path is absolute and does not contain traversal.
func isSafeAbsPath(p string) bool {
	if p == "" || !filepath.IsAbs(p) {
		return false
	}
	return filepath.Clean(p) == p
}
