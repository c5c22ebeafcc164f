package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// DefaultSampleInterval is used when a sampler is created with interval <= 0.
const DefaultSampleInterval = 5 * time.Second

var (
	backendCPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "menu2img",
		Subsystem: "backend",
		Name:      "cpu_percent",
		Help:      "CPU usage percentage of the backend process.",
	})
	backendMemoryMB = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "menu2img",
		Subsystem: "backend",
		Name:      "memory_mb",
		Help:      "Resident memory of the backend process in MB.",
	})
	backendThreads = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "menu2img",
		Subsystem: "backend",
		Name:      "num_threads",
		Help:      "Number of threads of the backend process.",
	})
)

func resourceCollectors() []prometheus.Collector {
	return []prometheus.Collector{backendCPUPercent, backendMemoryMB, backendThreads}
}

// ResourceUsage is one CPU/memory sample of the backend process.
type ResourceUsage struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	NumThreads int32     `json:"num_threads"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sample reads the current resource usage of pid.
func Sample(pid int32) (ResourceUsage, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("failed to create process handle: %w", err)
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("failed to get memory info: %w", err)
	}
	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		slog.Debug("Failed to get CPU percent", "pid", pid, "error", err)
		cpuPercent = 0
	}
	numThreads, err := proc.NumThreads()
	if err != nil {
		slog.Debug("Failed to get thread count", "pid", pid, "error", err)
		numThreads = 0
	}
	return ResourceUsage{
		PID:        pid,
		CPUPercent: cpuPercent,
		MemoryMB:   float64(memInfo.RSS) / 1024 / 1024,
		MemoryRSS:  memInfo.RSS,
		NumThreads: numThreads,
		Timestamp:  time.Now(),
	}, nil
}

// ResourceSampler periodically samples the backend pid reported by pidFn.
// A pid of 0 means "not running" and clears the last sample.
type ResourceSampler struct {
	interval time.Duration
	pidFn    func() int

	mu       sync.RWMutex
	last     ResourceUsage
	haveLast bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewResourceSampler(interval time.Duration, pidFn func() int) *ResourceSampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &ResourceSampler{interval: interval, pidFn: pidFn, stopCh: make(chan struct{})}
}

// Start begins sampling until ctx is done or Stop is called.
func (s *ResourceSampler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			s.collect()
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-t.C:
			}
		}
	}()
}

// Stop ends sampling and waits for the sampling goroutine.
func (s *ResourceSampler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Latest returns the most recent sample, if any.
func (s *ResourceSampler) Latest() (ResourceUsage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.haveLast
}

func (s *ResourceSampler) collect() {
	pid := s.pidFn()
	if pid <= 0 {
		s.mu.Lock()
		s.last, s.haveLast = ResourceUsage{}, false
		s.mu.Unlock()
		return
	}
	u, err := Sample(int32(pid))
	if err != nil {
		slog.Debug("Failed to collect backend resources", "pid", pid, "error", err)
		return
	}
	s.mu.Lock()
	s.last, s.haveLast = u, true
	s.mu.Unlock()
	if regOK.Load() {
		backendCPUPercent.Set(u.CPUPercent)
		backendMemoryMB.Set(u.MemoryMB)
		backendThreads.Set(float64(u.NumThreads))
	}
}
