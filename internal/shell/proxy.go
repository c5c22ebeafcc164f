package shell

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
)

//go:embed assets/desktop.js
var desktopScript []byte

// DesktopScript returns the page enhancement script injected into HTML pages.
func DesktopScript() []byte { return append([]byte(nil), desktopScript...) }

const startingPage = `<!doctype html><html><head><meta charset="utf-8"><title>Starting</title></head>` +
	`<body style="font-family:sans-serif;color:#555;display:flex;align-items:center;justify-content:center;height:100vh">` +
	`Starting backend...</body></html>`

// Proxy serves the backend's pages to the webview. Requests are answered
// with 503 until the backend is ready; HTML responses get the desktop
// script injected before </body>.
type Proxy struct {
	target *url.URL
	ready  func() bool
	script []byte
	log    *slog.Logger
	rp     *httputil.ReverseProxy
}

// NewProxy creates a reverse proxy to rawURL. script may be nil to disable injection.
func NewProxy(rawURL string, ready func() bool, script []byte, log *slog.Logger) (*Proxy, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", rawURL)
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Proxy{target: target, ready: ready, script: script, log: log}
	rp := httputil.NewSingleHostReverseProxy(target)
	director := rp.Director
	rp.Director = func(r *http.Request) {
		director(r)
		r.Host = target.Host
		// leave encoding to the transport so it negotiates gzip itself and
		// hands ModifyResponse a decoded body
		r.Header.Del("Accept-Encoding")
	}
	rp.ModifyResponse = p.inject
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.log.Warn("Backend request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	}
	p.rp = rp
	return p, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.ready != nil && !p.ready() {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, startingPage)
		return
	}
	p.rp.ServeHTTP(w, r)
}

func (p *Proxy) inject(resp *http.Response) error {
	if len(p.script) == 0 || !isHTML(resp) {
		return nil
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return err
	}
	body = InjectScript(body, p.script)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return nil
}

func isHTML(resp *http.Response) bool {
	return strings.HasPrefix(strings.ToLower(resp.Header.Get("Content-Type")), "text/html")
}

// InjectScript inserts script as an inline <script> before the last </body>,
// or appends it when the document has no body end tag.
func InjectScript(html, script []byte) []byte {
	tag := make([]byte, 0, len(script)+len("<script>\n</script>\n"))
	tag = append(tag, "<script>\n"...)
	tag = append(tag, script...)
	tag = append(tag, "\n</script>\n"...)

	i := bytes.LastIndex(bytes.ToLower(html), []byte("</body>"))
	if i < 0 {
		return append(html, tag...)
	}
	out := make([]byte, 0, len(html)+len(tag))
	out = append(out, html[:i]...)
	out = append(out, tag...)
	out = append(out, html[i:]...)
	return out
}
