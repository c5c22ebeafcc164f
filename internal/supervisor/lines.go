package supervisor

import (
	"sync"
	"time"
)

// DefaultRecentLines is the capacity of the recent output buffer.
const DefaultRecentLines = 200

// Line is one line of backend output.
type Line struct {
	Seq    int64     `json:"seq"`
	Time   time.Time `json:"time"`
	Stream string    `json:"stream"` // "stdout" or "stderr"
	Text   string    `json:"text"`
}

// LineBuffer keeps the most recent output lines in a fixed-size ring.
type LineBuffer struct {
	mu    sync.RWMutex
	lines []Line
	start int
	count int
	next  int64
}

func NewLineBuffer(capacity int) *LineBuffer {
	if capacity <= 0 {
		capacity = DefaultRecentLines
	}
	return &LineBuffer{lines: make([]Line, capacity), next: 1}
}

// Add appends a line, evicting the oldest one when full.
func (b *LineBuffer) Add(stream, text string) Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := Line{Seq: b.next, Time: time.Now(), Stream: stream, Text: text}
	b.next++
	capacity := len(b.lines)
	if b.count < capacity {
		b.lines[(b.start+b.count)%capacity] = l
		b.count++
	} else {
		b.lines[b.start] = l
		b.start = (b.start + 1) % capacity
	}
	return l
}

// Latest returns up to n most recent lines, oldest first. n <= 0 returns all.
func (b *LineBuffer) Latest(n int) []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n > b.count {
		n = b.count
	}
	out := make([]Line, 0, n)
	capacity := len(b.lines)
	for i := b.count - n; i < b.count; i++ {
		out = append(out, b.lines[(b.start+i)%capacity])
	}
	return out
}

// Since returns lines with Seq greater than seq, oldest first.
func (b *LineBuffer) Since(seq int64) []Line {
	all := b.Latest(0)
	for i, l := range all {
		if l.Seq > seq {
			return all[i:]
		}
	}
	return []Line{}
}

// Len reports how many lines are buffered.
func (b *LineBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
