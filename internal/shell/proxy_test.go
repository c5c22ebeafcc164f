package shell

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

func TestInjectScript(t *testing.T) {
	got := string(InjectScript([]byte("<html><BODY>x</BODY></html>"), []byte("run()")))
	want := "<html><BODY>x<script>\nrun()\n</script>\n</BODY></html>"
	if got != want {
		t.Fatalf("got %q", got)
	}
	got = string(InjectScript([]byte("<p>frag</p>"), []byte("run()")))
	if !strings.HasPrefix(got, "<p>frag</p><script>") {
		t.Fatalf("no body: %q", got)
	}
}

func TestDesktopScriptEmbedded(t *testing.T) {
	s := string(DesktopScript())
	if !strings.Contains(s, "window.go.shell.Bridge") || !strings.Contains(s, "SelectFile") {
		t.Fatalf("desktop script not embedded")
	}
}

// newBackendServer gzips every response when the client accepts it, the way
// a production WSGI stack behind compression middleware does.
func newBackendServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var gzipped atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ctype := `{"dishes":[]}`, "application/json"
		if r.URL.Path == "/" {
			body, ctype = "<html><body><h1>Menu2Img</h1></body></html>", "text/html; charset=utf-8"
		}
		w.Header().Set("Content-Type", ctype)
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			_, _ = io.WriteString(w, body)
			return
		}
		gzipped.Add(1)
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		_, _ = io.WriteString(zw, body)
		_ = zw.Close()
	}))
	t.Cleanup(srv.Close)
	return srv, &gzipped
}

func get(t *testing.T, h http.Handler, path string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	resp := rec.Result()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestProxy_NotReady(t *testing.T) {
	srv, gzipped := newBackendServer(t)
	var ready atomic.Bool
	p, err := NewProxy(srv.URL, ready.Load, []byte("run()"), quietLogger())
	if err != nil {
		t.Fatalf("proxy: %v", err)
	}
	resp, body := get(t, p, "/")
	if resp.StatusCode != http.StatusServiceUnavailable || resp.Header.Get("Retry-After") == "" {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Starting backend") {
		t.Fatalf("body = %q", body)
	}

	ready.Store(true)
	resp, body = get(t, p, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status after ready = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "<script>\nrun()\n</script>\n</body>") {
		t.Fatalf("script not injected: %q", body)
	}
	if gzipped.Load() == 0 {
		t.Fatalf("backend response was not compressed")
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" {
		t.Fatalf("content encoding = %q, want decoded body", enc)
	}
	if cl := resp.Header.Get("Content-Length"); cl != strconv.Itoa(len(body)) {
		t.Fatalf("content length %q for %d bytes", cl, len(body))
	}
}

func TestProxy_NonHTMLUntouched(t *testing.T) {
	srv, _ := newBackendServer(t)
	p, err := NewProxy(srv.URL, func() bool { return true }, []byte("run()"), quietLogger())
	if err != nil {
		t.Fatalf("proxy: %v", err)
	}
	resp, body := get(t, p, "/api/dishes")
	if resp.StatusCode != http.StatusOK || body != `{"dishes":[]}` {
		t.Fatalf("status = %d body = %q", resp.StatusCode, body)
	}
}

func TestProxy_BackendDown(t *testing.T) {
	srv, _ := newBackendServer(t)
	url := srv.URL
	srv.Close()
	p, err := NewProxy(url, func() bool { return true }, nil, quietLogger())
	if err != nil {
		t.Fatalf("proxy: %v", err)
	}
	if resp, _ := get(t, p, "/"); resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestNewProxy_RejectsRelativeURL(t *testing.T) {
	if _, err := NewProxy("localhost:5051", nil, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}
