package supervisor

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/taskgate/internal/task"
)

// Sampler periodically samples CPU/memory for tracked child processes via
// gopsutil, writing results directly onto each Task. Sampling is
// best-effort: a process that has already exited, or a platform gopsutil
// cannot introspect, simply stops producing samples without failing the
// task, per spec.md's "best-effort, non-fatal" requirement.
type Sampler struct {
	log arbor.ILogger

	mu      sync.Mutex
	tracked map[string]*sampleEntry
	stop    chan struct{}
	once    sync.Once
}

type sampleEntry struct {
	task *task.Task
	pid  int32
}

func NewSampler(log arbor.ILogger) *Sampler {
	s := &Sampler{log: log, tracked: make(map[string]*sampleEntry), stop: make(chan struct{})}
	go s.loop()
	return s
}

func (s *Sampler) Track(t *task.Task, pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked[t.ID] = &sampleEntry{task: t, pid: int32(pid)}
}

func (s *Sampler) Untrack(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracked, taskID)
}

func (s *Sampler) loop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sampleAll()
		case <-s.stop:
			return
		}
	}
}

func (s *Sampler) sampleAll() {
	s.mu.Lock()
	entries := make([]*sampleEntry, 0, len(s.tracked))
	for _, e := range s.tracked {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for _, e := range entries {
		proc, err := process.NewProcess(e.pid)
		if err != nil {
			continue // process likely already exited; skip silently
		}
		cpuPct, err := proc.CPUPercent()
		if err != nil {
			continue
		}
		memInfo, err := proc.MemoryInfo()
		if err != nil || memInfo == nil {
			continue
		}
		e.task.SetSample(cpuPct, float64(memInfo.RSS)/(1024*1024), time.Now())
	}
}

// Close stops the sampling loop. Safe to call once.
func (s *Sampler) Close() {
	s.once.Do(func() { close(s.stop) })
}
