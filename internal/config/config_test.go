package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/menu2img-desktop/internal/env"
	"github.com/loykin/menu2img-desktop/internal/readiness"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b := c.Backend
	if b.Interpreter != "python3" || b.Script != filepath.Join("web", "app.py") {
		t.Fatalf("unexpected command: %+v", b)
	}
	if b.Port != 5051 || b.Host != "localhost" {
		t.Fatalf("unexpected address: %s:%d", b.Host, b.Port)
	}
	if b.Marker != "Running on http://0.0.0.0:5051" {
		t.Fatalf("marker = %q", b.Marker)
	}
	if b.StartTimeout != 10*time.Second || b.StopGrace != 3*time.Second {
		t.Fatalf("unexpected timeouts: %s %s", b.StartTimeout, b.StopGrace)
	}
	if !b.UseOSEnv {
		t.Fatalf("use_os_env should default to true")
	}
	if c.Readiness.Mode != "marker" {
		t.Fatalf("mode = %q", c.Readiness.Mode)
	}
	if c.Window.Width != 1400 || c.Window.Height != 900 || c.Window.MinWidth != 1000 || c.Window.MinHeight != 700 {
		t.Fatalf("unexpected window: %+v", c.Window)
	}
	if strings.Join(c.Dialog.ImageExtensions, ",") != "jpg,jpeg,png,gif,bmp" {
		t.Fatalf("extensions = %v", c.Dialog.ImageExtensions)
	}
	if c.Diagnostics.Listen != "" {
		t.Fatalf("diagnostics should be disabled by default")
	}
	if c.BackendURL() != "http://localhost:5051" {
		t.Fatalf("url = %s", c.BackendURL())
	}
}

func TestLoad_FileOverridesAndDerivedMarker(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "menu2img.toml")
	writeFile(t, file, `
[backend]
interpreter = "python"
script = "server.py"
workdir = "app"
port = 6000
start_timeout = "2s"
args = ["--debug"]

[readiness]
mode = "any"
probe_path = "health"

[log.slog]
level = "debug"
format = "json"
`)
	c, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Backend.Marker != readiness.ListenMarker(6000) {
		t.Fatalf("marker not derived from port: %q", c.Backend.Marker)
	}
	if c.Backend.WorkDir != filepath.Join(dir, "app") {
		t.Fatalf("workdir not resolved against config dir: %q", c.Backend.WorkDir)
	}
	if c.Backend.StartTimeout != 2*time.Second || len(c.Backend.Args) != 1 {
		t.Fatalf("unexpected backend: %+v", c.Backend)
	}
	if c.ProbeURL() != "http://localhost:6000/health" {
		t.Fatalf("probe url = %s", c.ProbeURL())
	}
	if c.Log.Slog.Level != "debug" || c.Log.Slog.Format != "json" {
		t.Fatalf("log config = %+v", c.Log.Slog)
	}

	sc, err := c.SupervisorConfig()
	if err != nil {
		t.Fatalf("supervisor config: %v", err)
	}
	if sc.Readiness != readiness.ModeAny || sc.StartTimeout != 2*time.Second {
		t.Fatalf("unexpected supervisor config: %+v", sc)
	}
	if out, _ := c.OutputPath(); out != filepath.Join(dir, "app", "dishes") {
		t.Fatalf("output path = %q", out)
	}
	if sc.Process.Interpreter != "python" || sc.Process.ScriptPath() != filepath.Join(dir, "app", "server.py") {
		t.Fatalf("unexpected spec: %+v", sc.Process)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MENU2IMG_BACKEND_PORT", "7000")
	t.Setenv("MENU2IMG_DIAGNOSTICS_LISTEN", "127.0.0.1:7071")
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Backend.Port != 7000 || c.Backend.Marker != readiness.ListenMarker(7000) {
		t.Fatalf("env override not applied: %+v", c.Backend)
	}
	if c.Diagnostics.Listen != "127.0.0.1:7071" {
		t.Fatalf("listen = %q", c.Diagnostics.Listen)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate_Errors(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cases := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"no command", func(c *Config) { c.Backend.Interpreter, c.Backend.Script = "", "" }, "interpreter or script"},
		{"bad port", func(c *Config) { c.Backend.Port = 70000 }, "out of range"},
		{"zero timeout", func(c *Config) { c.Backend.StartTimeout = 0 }, "start_timeout"},
		{"bad mode", func(c *Config) { c.Readiness.Mode = "psychic" }, "unknown readiness mode"},
		{"no marker", func(c *Config) { c.Backend.Marker = "" }, "requires a marker"},
		{"no extensions", func(c *Config) { c.Dialog.ImageExtensions = nil }, "image_extensions"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cc := *c
			tc.mut(&cc)
			err := cc.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	c, _ := Load("")
	c.Backend.Port = 0
	c.Backend.StartTimeout = -time.Second
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) != 2 {
		t.Fatalf("expected two joined errors, got %v", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	writeFile(t, dotenv, "A=1\n#comment\nexport B=\"two\"\nC='three'\nnoeq\n")
	m, err := loadEnvFile(dotenv)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if m["A"] != "1" || m["B"] != "two" || m["C"] != "three" || len(m) != 3 {
		t.Fatalf("unexpected pairs: %+v", m)
	}
}

func TestBackendEnv_Precedence(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	t.Setenv("OS_ONLY", "osv")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	writeFile(t, dotenv, "FILE_ONLY=fv\nTOP=from-file\nCHAIN=${OS_ONLY}-x\n")
	cfgPath := filepath.Join(dir, "cfg.toml")
	writeFile(t, cfgPath, `
[backend]
env_files = [".env"]
env = ["TOP=tv"]
`)
	c, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pairs, err := c.BackendEnv()
	if err != nil {
		t.Fatalf("backend env: %v", err)
	}
	m := env.Parse(pairs)
	if m["OS_ONLY"] != "osv" || m["OPENAI_API_KEY"] != "sk-test" {
		t.Fatalf("host env missing: %v", m["OS_ONLY"])
	}
	if m["FILE_ONLY"] != "fv" || m["CHAIN"] != "osv-x" {
		t.Fatalf("file env wrong: %q %q", m["FILE_ONLY"], m["CHAIN"])
	}
	if m["TOP"] != "tv" {
		t.Fatalf("env list should win: %q", m["TOP"])
	}
}

func TestBackendEnv_WithoutOSEnv(t *testing.T) {
	t.Setenv("OS_ONLY", "osv")
	cfgPath := filepath.Join(t.TempDir(), "cfg.toml")
	writeFile(t, cfgPath, `
[backend]
use_os_env = false
env = ["ONLY=me"]
`)
	c, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pairs, err := c.BackendEnv()
	if err != nil {
		t.Fatalf("backend env: %v", err)
	}
	if len(pairs) != 1 || pairs[0] != "ONLY=me" {
		t.Fatalf("pairs = %v", pairs)
	}
}

func TestBackendEnv_MissingFile(t *testing.T) {
	c, _ := Load("")
	c.Backend.EnvFiles = []string{filepath.Join(t.TempDir(), "missing.env")}
	if _, err := c.ProcessSpec(); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}
