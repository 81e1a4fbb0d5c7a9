package metrics

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Snapshot holds one system metrics sample. Heap figures matter most here:
// an in-memory road graph for a large extract is dominated by node and
// adjacency maps, and the heap number tells you when to switch to the flat
// node store.
type Snapshot struct {
	CPUPercent        float64 // system-wide CPU usage (0-100%)
	ProcessCPUPercent float64 // this process, can exceed 100% on multi-core
	MemoryUsedGB      float64
	MemoryPercent     float64
	HeapAllocGB       float64 // Go heap in use
	Goroutines        int
	Timestamp         time.Time
}

// Collector periodically collects and logs system metrics while a build runs
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	mu   sync.RWMutex
	last *Snapshot
}

// NewCollector creates a new metrics collector
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}

	proc, _ := process.NewProcess(int32(os.Getpid()))

	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// Start begins periodic metrics collection. Returns when context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// Last returns the most recent snapshot
func (c *Collector) Last() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Collector) collect() {
	snap := &Snapshot{
		Timestamp:  time.Now(),
		Goroutines: runtime.NumGoroutine(),
	}

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		snap.CPUPercent = cpuPercent[0]
	}

	if c.proc != nil {
		if procCPU, err := c.proc.Percent(0); err == nil {
			snap.ProcessCPUPercent = procCPU
		}
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		snap.MemoryPercent = vmem.UsedPercent
		snap.MemoryUsedGB = float64(vmem.Used) / (1024 * 1024 * 1024)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	snap.HeapAllocGB = float64(ms.HeapAlloc) / (1024 * 1024 * 1024)

	c.mu.Lock()
	c.last = snap
	c.mu.Unlock()

	c.logger.Info("System metrics",
		zap.Float64("sys_cpu", snap.CPUPercent),
		zap.Float64("proc_cpu", snap.ProcessCPUPercent),
		zap.Float64("mem_pct", snap.MemoryPercent),
		zap.Float64("heap_gb", snap.HeapAllocGB),
		zap.Int("goroutines", snap.Goroutines),
	)
}
