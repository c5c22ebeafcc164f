package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/menu2img-desktop/internal/env"
	"github.com/loykin/menu2img-desktop/internal/logger"
	"github.com/loykin/menu2img-desktop/internal/process"
	"github.com/loykin/menu2img-desktop/internal/readiness"
	"github.com/loykin/menu2img-desktop/internal/supervisor"
)

// EnvPrefix is the prefix of environment overrides, e.g. MENU2IMG_BACKEND_PORT.
const EnvPrefix = "MENU2IMG"

// Config represents the top-level TOML structure.
type Config struct {
	Backend     BackendConfig     `toml:"backend" mapstructure:"backend"`
	Readiness   ReadinessConfig   `toml:"readiness" mapstructure:"readiness"`
	Window      WindowConfig      `toml:"window" mapstructure:"window"`
	Dialog      DialogConfig      `toml:"dialog" mapstructure:"dialog"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics" mapstructure:"diagnostics"`
	Log         logger.Config     `toml:"log" mapstructure:"log"`
}

type BackendConfig struct {
	Name         string        `toml:"name" mapstructure:"name"`
	Interpreter  string        `toml:"interpreter" mapstructure:"interpreter"`
	Script       string        `toml:"script" mapstructure:"script"`
	Args         []string      `toml:"args" mapstructure:"args"`
	WorkDir      string        `toml:"workdir" mapstructure:"workdir"`
	Host         string        `toml:"host" mapstructure:"host"`
	Port         int           `toml:"port" mapstructure:"port"`
	Marker       string        `toml:"marker" mapstructure:"marker"`
	StartTimeout time.Duration `toml:"start_timeout" mapstructure:"start_timeout"`
	StopGrace    time.Duration `toml:"stop_grace" mapstructure:"stop_grace"`
	RecentLines  int           `toml:"recent_lines" mapstructure:"recent_lines"`
	UseOSEnv     bool          `toml:"use_os_env" mapstructure:"use_os_env"`
	Env          []string      `toml:"env" mapstructure:"env"`
	EnvFiles     []string      `toml:"env_files" mapstructure:"env_files"`
	OutputDir    string        `toml:"output_dir" mapstructure:"output_dir"` // generated images, relative to workdir
}

type ReadinessConfig struct {
	Mode      string `toml:"mode" mapstructure:"mode"` // marker, http or any
	ProbePath string `toml:"probe_path" mapstructure:"probe_path"`
}

type WindowConfig struct {
	Title     string `toml:"title" mapstructure:"title"`
	Width     int    `toml:"width" mapstructure:"width"`
	Height    int    `toml:"height" mapstructure:"height"`
	MinWidth  int    `toml:"min_width" mapstructure:"min_width"`
	MinHeight int    `toml:"min_height" mapstructure:"min_height"`
	DevTools  bool   `toml:"devtools" mapstructure:"devtools"`
}

type DialogConfig struct {
	Title           string   `toml:"title" mapstructure:"title"`
	ImageExtensions []string `toml:"image_extensions" mapstructure:"image_extensions"`
}

type DiagnosticsConfig struct {
	Listen         string        `toml:"listen" mapstructure:"listen"` // empty disables the router
	SampleInterval time.Duration `toml:"sample_interval" mapstructure:"sample_interval"`
}

// ImageExtensions accepted by the file dialog.
var ImageExtensions = []string{"jpg", "jpeg", "png", "gif", "bmp"}

// SetDefaults installs the built-in values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend.name", "backend")
	v.SetDefault("backend.interpreter", "python3")
	v.SetDefault("backend.script", filepath.Join("web", "app.py"))
	v.SetDefault("backend.host", "localhost")
	v.SetDefault("backend.port", 5051)
	v.SetDefault("backend.start_timeout", supervisor.DefaultStartTimeout)
	v.SetDefault("backend.stop_grace", supervisor.DefaultStopGrace)
	v.SetDefault("backend.recent_lines", supervisor.DefaultRecentLines)
	v.SetDefault("backend.use_os_env", true)
	v.SetDefault("backend.output_dir", "dishes")

	v.SetDefault("readiness.mode", string(readiness.ModeMarker))
	v.SetDefault("readiness.probe_path", "/")

	v.SetDefault("window.title", "Menu2Img")
	v.SetDefault("window.width", 1400)
	v.SetDefault("window.height", 900)
	v.SetDefault("window.min_width", 1000)
	v.SetDefault("window.min_height", 700)

	v.SetDefault("dialog.title", "Select Menu Image")
	v.SetDefault("dialog.image_extensions", append([]string(nil), ImageExtensions...))

	v.SetDefault("diagnostics.listen", "")
	v.SetDefault("diagnostics.sample_interval", 5*time.Second)

	d := logger.DefaultConfig()
	v.SetDefault("log.slog.level", d.Slog.Level)
	v.SetDefault("log.slog.format", d.Slog.Format)
	v.SetDefault("log.slog.color", d.Slog.Color)
	v.SetDefault("log.slog.timestamps", d.Slog.TimeStamps)
}

// Load reads configuration from path (optional, TOML) and the environment.
// Environment variables use the MENU2IMG_ prefix with '.' replaced by '_'.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if c.Backend.Marker == "" {
		c.Backend.Marker = readiness.ListenMarker(c.Backend.Port)
	}
	if path != "" {
		c.resolvePaths(filepath.Dir(path))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// resolvePaths makes relative workdir and env file paths relative to the config file.
func (c *Config) resolvePaths(base string) {
	if c.Backend.WorkDir != "" && !filepath.IsAbs(c.Backend.WorkDir) {
		c.Backend.WorkDir = filepath.Join(base, c.Backend.WorkDir)
	}
	for i, p := range c.Backend.EnvFiles {
		if !filepath.IsAbs(p) {
			c.Backend.EnvFiles[i] = filepath.Join(base, p)
		}
	}
}

// Validate rejects configurations the backend supervisor cannot run.
func (c *Config) Validate() error {
	var errs []error
	b := c.Backend
	if strings.TrimSpace(b.Interpreter) == "" && strings.TrimSpace(b.Script) == "" {
		errs = append(errs, errors.New("backend requires interpreter or script"))
	}
	if b.Port <= 0 || b.Port > 65535 {
		errs = append(errs, fmt.Errorf("backend port %d out of range", b.Port))
	}
	if strings.TrimSpace(b.Host) == "" {
		errs = append(errs, errors.New("backend host is required"))
	}
	if b.StartTimeout <= 0 {
		errs = append(errs, fmt.Errorf("backend start_timeout must be positive, got %s", b.StartTimeout))
	}
	if b.StopGrace < 0 {
		errs = append(errs, fmt.Errorf("backend stop_grace must not be negative, got %s", b.StopGrace))
	}
	mode, err := readiness.ParseMode(c.Readiness.Mode)
	if err != nil {
		errs = append(errs, err)
	}
	if mode.UsesMarker() && b.Marker == "" {
		errs = append(errs, errors.New("readiness mode requires a marker"))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d is invalid", c.Window.Width, c.Window.Height))
	}
	if len(c.Dialog.ImageExtensions) == 0 {
		errs = append(errs, errors.New("dialog.image_extensions must not be empty"))
	}
	return errors.Join(errs...)
}

// BackendURL is the loopback address the window displays.
func (c *Config) BackendURL() string {
	return "http://" + net.JoinHostPort(c.Backend.Host, strconv.Itoa(c.Backend.Port))
}

// ProbeURL is polled when the readiness mode uses the HTTP probe.
func (c *Config) ProbeURL() string {
	p := c.Readiness.ProbePath
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return c.BackendURL() + p
}

// OutputPath is the absolute folder the backend writes generated images to.
func (c *Config) OutputPath() (string, error) {
	p := c.Backend.OutputDir
	if !filepath.IsAbs(p) && c.Backend.WorkDir != "" {
		p = filepath.Join(c.Backend.WorkDir, p)
	}
	return filepath.Abs(p)
}

// BackendEnv composes the backend environment: the host environment when
// use_os_env is set, then env_files in order, then the env list.
func (c *Config) BackendEnv() ([]string, error) {
	e := env.New()
	if c.Backend.UseOSEnv {
		e.FromOS()
	}
	for _, p := range c.Backend.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, fmt.Errorf("load env file %s: %w", p, err)
		}
		e.SetAll(pairs)
	}
	return e.Merge(c.Backend.Env), nil
}

// ProcessSpec builds the launch description of the backend.
func (c *Config) ProcessSpec() (process.Spec, error) {
	environ, err := c.BackendEnv()
	if err != nil {
		return process.Spec{}, err
	}
	s := process.Spec{
		Name:        c.Backend.Name,
		Interpreter: c.Backend.Interpreter,
		Script:      c.Backend.Script,
		Args:        c.Backend.Args,
		WorkDir:     c.Backend.WorkDir,
		Env:         environ,
	}
	return s, s.Validate()
}

// SupervisorConfig builds the supervisor configuration for the backend.
func (c *Config) SupervisorConfig() (supervisor.Config, error) {
	spec, err := c.ProcessSpec()
	if err != nil {
		return supervisor.Config{}, err
	}
	mode, err := readiness.ParseMode(c.Readiness.Mode)
	if err != nil {
		return supervisor.Config{}, err
	}
	return supervisor.Config{
		Process:      spec,
		Marker:       c.Backend.Marker,
		Readiness:    mode,
		ProbeURL:     c.ProbeURL(),
		StartTimeout: c.Backend.StartTimeout,
		StopGrace:    c.Backend.StopGrace,
		RecentLines:  c.Backend.RecentLines,
	}, nil
}

// loadEnvFile parses KEY=VALUE lines; blank lines and lines starting with #
// are ignored, an optional "export " prefix and surrounding quotes are stripped.
func loadEnvFile(path string) (env.Var, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	m := make(env.Var)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		i := strings.IndexByte(line, '=')
		if i <= 0 {
			continue
		}
		k := strings.TrimSpace(line[:i])
		v := strings.TrimSpace(line[i+1:])
		if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
			v = v[1 : len(v)-1]
		}
		m[k] = v
	}
	return m, nil
}
