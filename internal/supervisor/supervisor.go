package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/menu2img-desktop/internal/metrics"
	"github.com/loykin/menu2img-desktop/internal/process"
	"github.com/loykin/menu2img-desktop/internal/readiness"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultStartTimeout = 10 * time.Second
	DefaultStopGrace    = 3 * time.Second
)

// Config describes the backend to supervise and how to decide it is ready.
type Config struct {
	Process      process.Spec
	Marker       string         // readiness banner searched in the output
	Readiness    readiness.Mode // marker, http or any
	ProbeURL     string         // polled when Readiness uses the HTTP probe
	StartTimeout time.Duration
	StopGrace    time.Duration // Shutdown waits this long before killing
	RecentLines  int
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

// WithOutputLogger sets the logger that receives every backend output line.
func WithOutputLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.outLog = l }
}

// WithOutputWriters mirrors raw stdout/stderr bytes into w (e.g. rotating files).
// The writers are closed once the backend has exited.
func WithOutputWriters(stdout, stderr io.WriteCloser) Option {
	return func(s *Supervisor) { s.stdoutW, s.stderrW = stdout, stderr }
}

// WithExitHandler registers a callback invoked once after the backend exits.
func WithExitHandler(fn func(process.Status)) Option {
	return func(s *Supervisor) { s.onExit = fn }
}

// Supervisor owns the lifecycle of one backend process:
// idle -> starting -> ready -> stopped, or idle -> starting -> failed.
type Supervisor struct {
	cfg     Config
	log     *slog.Logger
	outLog  *slog.Logger
	stdoutW io.WriteCloser
	stderrW io.WriteCloser
	onExit  func(process.Status)
	recent  *LineBuffer

	mu        sync.Mutex
	state     State
	proc      *process.Process
	runID     string
	startedAt time.Time
	readyAt   time.Time
	lastErr   error
	signaled  bool

	ready     atomic.Bool
	readyCh   chan struct{}
	readyOnce sync.Once
	stopCh    chan struct{}
	stopOnce  sync.Once
	exited    chan struct{}
}

func New(cfg Config, opts ...Option) *Supervisor {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = DefaultStartTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	if cfg.Readiness == "" {
		cfg.Readiness = readiness.ModeMarker
	}
	if cfg.Process.Name == "" {
		cfg.Process.Name = "backend"
	}
	s := &Supervisor{
		cfg:     cfg,
		state:   StateIdle,
		readyCh: make(chan struct{}),
		stopCh:  make(chan struct{}),
		exited:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.outLog == nil {
		s.outLog = s.log.With("process", cfg.Process.Name)
	}
	s.recent = NewLineBuffer(cfg.RecentLines)
	return s
}

// Start launches the backend and blocks until it is ready, the launch fails,
// the start timeout elapses, ctx is done or Stop is called. The first of these
// decides the result; the backend keeps running after a timeout until Stop.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.setStateLocked(StateStarting)
	s.runID = uuid.NewString()
	runID := s.runID
	spec := s.cfg.Process
	proc := process.New(spec)
	stdout, stderr, err := proc.Start()
	if err != nil {
		serr := &SpawnError{Command: spec.CommandLine(), Err: err}
		s.lastErr = serr
		s.setStateLocked(StateFailed)
		s.mu.Unlock()
		metrics.IncStart(metrics.ResultSpawnError)
		s.log.Error("Failed to start backend", "run_id", runID, "command", serr.Command, "error", err)
		return serr
	}
	s.proc = proc
	s.startedAt = time.Now()
	s.mu.Unlock()

	pid := proc.Snapshot().PID
	s.log.Info("Backend started", "run_id", runID, "pid", pid, "command", spec.CommandLine(),
		"readiness", string(s.cfg.Readiness), "timeout", s.cfg.StartTimeout)

	outLog := s.outLog.With("run_id", runID)
	var readers sync.WaitGroup
	readers.Add(2)
	go s.relay(&readers, outLog, "stdout", stdout, s.stdoutW)
	go s.relay(&readers, outLog, "stderr", stderr, s.stderrW)
	go s.monitor(&readers, proc, runID)

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.cfg.Readiness.UsesProbe() {
		go func() {
			probe := readiness.HTTPProbe{URL: s.cfg.ProbeURL}
			if err := probe.Wait(raceCtx); err == nil {
				s.signalReady()
			}
		}()
	}

	timer := time.NewTimer(s.cfg.StartTimeout)
	defer timer.Stop()
	select {
	case <-s.readyCh:
		return s.resolveReady(runID)
	case <-timer.C:
		return s.resolveFailed(runID, metrics.ResultTimeout,
			&TimeoutError{After: s.cfg.StartTimeout, Marker: s.markerFor()})
	case <-s.stopCh:
		return s.resolveFailed(runID, metrics.ResultCanceled, ErrStopped)
	case <-ctx.Done():
		return s.resolveFailed(runID, metrics.ResultCanceled, ctx.Err())
	}
}

func (s *Supervisor) markerFor() string {
	if s.cfg.Readiness.UsesMarker() {
		return s.cfg.Marker
	}
	return ""
}

func (s *Supervisor) resolveReady(runID string) error {
	s.mu.Lock()
	if s.state != StateStarting {
		s.mu.Unlock()
		return ErrStopped
	}
	s.readyAt = time.Now()
	latency := s.readyAt.Sub(s.startedAt)
	s.ready.Store(true)
	s.setStateLocked(StateReady)
	s.mu.Unlock()

	metrics.IncStart(metrics.ResultReady)
	metrics.ObserveReady(latency.Seconds())
	s.log.Info("Backend ready", "run_id", runID, "latency", latency)
	return nil
}

func (s *Supervisor) resolveFailed(runID, result string, err error) error {
	s.mu.Lock()
	if s.state == StateStarting {
		s.setStateLocked(StateFailed)
	}
	s.lastErr = err
	s.mu.Unlock()

	metrics.IncStart(result)
	s.log.Error("Backend did not become ready", "run_id", runID, "error", err)
	return err
}

// signalReady resolves the readiness race; later calls are no-ops.
func (s *Supervisor) signalReady() {
	s.readyOnce.Do(func() { close(s.readyCh) })
}

// Stop sends one termination signal to the backend. It is a no-op when
// nothing was started or the signal has already been sent, and it does not
// wait for the process to exit.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.proc == nil || s.signaled {
		s.mu.Unlock()
		return nil
	}
	s.signaled = true
	if !s.state.Terminal() {
		s.setStateLocked(StateStopped)
	}
	proc := s.proc
	runID := s.runID
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopCh) })
	metrics.IncStop()
	s.log.Info("Stopping backend", "run_id", runID, "pid", proc.Snapshot().PID)
	return proc.Terminate()
}

// Shutdown stops the backend and waits up to the configured grace period
// (or ctx) for it to exit before killing it.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		s.log.Warn("Termination signal failed", "error", err)
	}
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc == nil {
		return nil
	}
	t := time.NewTimer(s.cfg.StopGrace)
	defer t.Stop()
	select {
	case <-s.exited:
		return nil
	case <-t.C:
	case <-ctx.Done():
	}
	s.log.Warn("Backend did not exit in time, killing", "grace", s.cfg.StopGrace)
	if err := proc.Kill(); err != nil {
		return err
	}
	select {
	case <-s.exited:
	case <-time.After(200 * time.Millisecond):
		// best-effort
	}
	return nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready reports whether readiness has been observed. It never reverts to false.
func (s *Supervisor) Ready() bool { return s.ready.Load() }

// Exited is closed after the backend process has been reaped.
func (s *Supervisor) Exited() <-chan struct{} { return s.exited }

// PID returns the backend pid while it is running, otherwise 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc == nil {
		return 0
	}
	st := proc.Snapshot()
	if !st.Running {
		return 0
	}
	return st.PID
}

// RecentOutput returns up to n recent output lines, oldest first.
func (s *Supervisor) RecentOutput(n int) []Line { return s.recent.Latest(n) }

// OutputSince returns output lines newer than seq.
func (s *Supervisor) OutputSince(seq int64) []Line { return s.recent.Since(seq) }

// Snapshot is a copy of the supervisor state for diagnostics.
type Snapshot struct {
	State     string    `json:"state"`
	Ready     bool      `json:"ready"`
	RunID     string    `json:"run_id,omitempty"`
	Command   string    `json:"command"`
	PID       int       `json:"pid"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitempty"`
	ReadyAt   time.Time `json:"ready_at,omitempty"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	ExitCode  int       `json:"exit_code"`
	LastError string    `json:"last_error,omitempty"`
}

// Status returns a snapshot of the supervisor and its process handle.
func (s *Supervisor) Status() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		State:     s.state.String(),
		Ready:     s.ready.Load(),
		RunID:     s.runID,
		Command:   s.cfg.Process.CommandLine(),
		StartedAt: s.startedAt,
		ReadyAt:   s.readyAt,
		ExitCode:  -1,
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	proc := s.proc
	s.mu.Unlock()
	if proc != nil {
		st := proc.Snapshot()
		snap.PID = st.PID
		snap.Running = st.Running
		snap.StoppedAt = st.StoppedAt
		snap.ExitCode = st.ExitCode
	}
	return snap
}

func (s *Supervisor) setStateLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	metrics.RecordStateTransition(from.String(), to.String())
}
