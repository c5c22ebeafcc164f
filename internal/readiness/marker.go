package readiness

import (
	"bytes"
	"strconv"
	"sync"
)

// Marker watches backend output for a fixed substring.
// Output arrives in arbitrary chunks, so the last len(marker)-1 bytes of the
// previous chunk are kept to catch a marker split across two reads.
// Use one Marker per output stream; Matched may be called from any goroutine.
type Marker struct {
	needle  []byte
	mu      sync.Mutex
	tail    []byte
	matched bool
}

func NewMarker(s string) *Marker {
	return &Marker{needle: []byte(s)}
}

func (m *Marker) String() string { return string(m.needle) }

// Feed inspects one output chunk. It returns true when the marker has been
// seen in this or any earlier chunk. An empty marker never matches.
func (m *Marker) Feed(chunk []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.matched {
		return true
	}
	n := len(m.needle)
	if n == 0 {
		return false
	}
	buf := append(m.tail, chunk...)
	if bytes.Contains(buf, m.needle) {
		m.matched = true
		m.tail = nil
		return true
	}
	if keep := n - 1; len(buf) > keep {
		buf = buf[len(buf)-keep:]
	}
	m.tail = append(m.tail[:0:0], buf...)
	return false
}

// Matched reports whether the marker has been observed.
func (m *Marker) Matched() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matched
}

// ListenMarker renders the banner the backend prints once it listens on port.
func ListenMarker(port int) string {
	return "Running on http://0.0.0.0:" + strconv.Itoa(port)
}
