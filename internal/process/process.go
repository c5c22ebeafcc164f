package process

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ErrNotStarted is returned by Wait when Start was never called successfully.
var ErrNotStarted = errors.New("process not started")

// Process owns one *exec.Cmd with piped stdout/stderr.
// Start may succeed at most once per Process.
type Process struct {
	spec     Spec
	mu       sync.Mutex
	cmd      *exec.Cmd
	status   Status
	waitOnce sync.Once
	waitErr  error
}

func New(spec Spec) *Process {
	return &Process{
		spec:   spec,
		status: Status{Name: spec.Name, ExitCode: -1},
	}
}

// Start launches the command with stdout and stderr captured through pipes.
// The caller must drain both readers before calling Wait.
func (p *Process) Start() (stdout io.ReadCloser, stderr io.ReadCloser, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return nil, nil, fmt.Errorf("process %s already started", p.spec.Name)
	}

	cmd := p.spec.BuildCommand()
	configureSysProcAttr(cmd)
	if stdout, err = cmd.StdoutPipe(); err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if stderr, err = cmd.StderrPipe(); err != nil {
		return nil, nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	p.cmd = cmd
	p.status.Running = true
	p.status.PID = cmd.Process.Pid
	p.status.StartedAt = time.Now()
	return stdout, stderr, nil
}

// Wait reaps the process once; later calls return the same result.
func (p *Process) Wait() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil {
		return ErrNotStarted
	}
	p.waitOnce.Do(func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.status.Running = false
		p.status.StoppedAt = time.Now()
		p.status.ExitCode = exitCode(cmd, err)
		if err != nil {
			p.status.ExitErr = err.Error()
		}
		p.waitErr = err
		p.mu.Unlock()
	})
	return p.waitErr
}

// Terminate asks the process (and its group) to exit. No-op when not running.
func (p *Process) Terminate() error {
	return p.signal(syscall.SIGTERM)
}

// Kill forcefully ends the process (and its group). No-op when not running.
func (p *Process) Kill() error {
	return p.signal(syscall.SIGKILL)
}

func (p *Process) signal(sig syscall.Signal) error {
	p.mu.Lock()
	cmd := p.cmd
	running := p.status.Running
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil || !running {
		return nil
	}
	return signalGroup(cmd.Process, sig)
}

// Snapshot returns a copy of the current status.
func (p *Process) Snapshot() Status {
	p.mu.Lock()
	s := p.status
	p.mu.Unlock()
	return s
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
