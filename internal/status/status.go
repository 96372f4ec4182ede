// Package status implements the System Status Reporter (C8): an on-demand
// snapshot of host resource usage, task counts by state, and project/
// scheduler saturation. Grounded on the teacher's pkg/monitor.HTTPMonitor
// status/metrics aggregation (pkg/monitor/monitor.go), adapted from a
// live HTTP handler pair into a single synchronous snapshot function since
// taskgate's transport is stdio-only (no HTTP surface to poll).
package status

import (
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/ternarybob/taskgate/internal/project"
	"github.com/ternarybob/taskgate/internal/task"
)

// Snapshot is the full system status payload returned by get_system_status.
type Snapshot struct {
	HostCPUPercent   float64
	HostMemUsedMB    float64
	HostMemTotalMB   float64
	TasksByState     map[task.State]int
	ProjectCount     int
	ActiveProject    string
	SchedulerRunning int
	SchedulerCapacity int
	Saturation       float64
}

// Reporter aggregates status from the Task Registry, Project Registry, and
// the Scheduler's own capacity accounting.
type Reporter struct {
	tasks    *task.Registry
	projects *project.Registry
	capacity func() (running, capacity int)
}

func New(tasks *task.Registry, projects *project.Registry, capacity func() (running, capacity int)) *Reporter {
	return &Reporter{tasks: tasks, projects: projects, capacity: capacity}
}

// Snapshot collects a point-in-time status report. Host CPU/memory
// sampling is best-effort: a gopsutil error on an unsupported platform
// simply leaves those fields at zero rather than failing the call.
func (r *Reporter) Snapshot() Snapshot {
	s := Snapshot{TasksByState: make(map[task.State]int)}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		s.HostCPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		s.HostMemUsedMB = float64(vm.Used) / (1024 * 1024)
		s.HostMemTotalMB = float64(vm.Total) / (1024 * 1024)
	}

	for _, t := range r.tasks.List(nil) {
		s.TasksByState[t.State()]++
	}

	s.ProjectCount = len(r.projects.List())
	if active, ok := r.projects.Active(); ok {
		s.ActiveProject = active.Path
	}

	if r.capacity != nil {
		s.SchedulerRunning, s.SchedulerCapacity = r.capacity()
		if s.SchedulerCapacity > 0 {
			s.Saturation = float64(s.SchedulerRunning) / float64(s.SchedulerCapacity)
		}
	}

	return s
}
