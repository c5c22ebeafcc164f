package supervisor

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/loykin/menu2img-desktop/internal/metrics"
	"github.com/loykin/menu2img-desktop/internal/process"
	"github.com/loykin/menu2img-desktop/internal/readiness"
)

const (
	readChunk   = 4 << 10
	maxLineSize = 64 << 10
)

// relay drains one output stream. Each stream gets its own marker so a
// banner split across interleaved stdout/stderr chunks cannot match falsely.
func (s *Supervisor) relay(wg *sync.WaitGroup, log *slog.Logger, stream string, r io.Reader, w io.Writer) {
	defer wg.Done()
	var marker *readiness.Marker
	if s.cfg.Readiness.UsesMarker() && s.cfg.Marker != "" {
		marker = readiness.NewMarker(s.cfg.Marker)
	}
	var pending []byte
	emit := func(b []byte) {
		text := strings.TrimRight(string(bytes.ToValidUTF8(b, []byte("�"))), "\r")
		s.recent.Add(stream, text)
		metrics.IncOutputLine(stream)
		log.Info(text, "stream", stream)
	}

	buf := make([]byte, readChunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if marker != nil && marker.Feed(chunk) {
				s.signalReady()
			}
			if w != nil {
				_, _ = w.Write(chunk)
			}
			pending = append(pending, chunk...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				emit(pending[:i])
				pending = pending[i+1:]
			}
			if len(pending) >= maxLineSize {
				emit(pending)
				pending = nil
			}
		}
		if err != nil {
			break
		}
	}
	if len(pending) > 0 {
		emit(pending)
	}
}

// monitor reaps the backend once both streams are drained.
func (s *Supervisor) monitor(readers *sync.WaitGroup, proc *process.Process, runID string) {
	readers.Wait()
	waitErr := proc.Wait()
	st := proc.Snapshot()

	s.mu.Lock()
	stopped := s.signaled
	state := s.state
	s.mu.Unlock()

	attrs := []any{"run_id", runID, "pid", st.PID, "exit_code", st.ExitCode}
	switch {
	case stopped:
		s.log.Info("Backend exited", attrs...)
	case state == StateReady:
		s.log.Warn("Backend exited unexpectedly", append(attrs, "error", waitErr)...)
	default:
		// Before readiness an early exit does not resolve Start; the timeout does.
		s.log.Warn("Backend exited before becoming ready", append(attrs, "error", waitErr)...)
	}
	metrics.IncExit(st.ExitCode)

	for _, w := range []io.WriteCloser{s.stdoutW, s.stderrW} {
		if w != nil {
			_ = w.Close()
		}
	}
	close(s.exited)
	if s.onExit != nil {
		s.onExit(st)
	}
}
