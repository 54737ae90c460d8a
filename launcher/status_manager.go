package launcher

import (
	"sync"
	"time"
)

const (
	StatusQueued    = "Queued"
	StatusRunning   = "Running"
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
	StatusDetached  = "Detached"
)

type ExecutionStatus struct {
	Status    string
	PID       int
	ExitCode  int
	StartTime time.Time
	EndTime   time.Time
}

// Finished reports whether the run reached a terminal state.
func (s ExecutionStatus) Finished() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusDetached:
		return true
	}
	return false
}

// Elapsed is the run time so far, or the total run time once finished.
func (s ExecutionStatus) Elapsed(now time.Time) time.Duration {
	switch {
	case s.StartTime.IsZero():
		return 0
	case !s.EndTime.IsZero():
		return s.EndTime.Sub(s.StartTime)
	default:
		return now.Sub(s.StartTime)
	}
}

type StatusManager interface {
	SetStatus(name, status string)
	MarkRunning(name string, pid int, startTime time.Time)
	MarkFinished(name string, exitCode int, endTime time.Time)
	MarkDetached(name string, pid int, startTime time.Time)
	Snapshot(name string) ExecutionStatus
	// Done returns a channel closed once the named run is finished.
	Done(name string) <-chan struct{}
}

type statusManager struct {
	statusMap map[string]*ExecutionStatus
	done      map[string]chan struct{}
	mu        sync.Mutex
}

func NewStatusManager() StatusManager {
	return &statusManager{
		statusMap: make(map[string]*ExecutionStatus),
		done:      make(map[string]chan struct{}),
	}
}

// entry must be called with mu held.
func (sm *statusManager) entry(name string) *ExecutionStatus {
	if _, exists := sm.statusMap[name]; !exists {
		sm.statusMap[name] = &ExecutionStatus{Status: StatusQueued}
		sm.done[name] = make(chan struct{})
	}
	return sm.statusMap[name]
}

func (sm *statusManager) SetStatus(name, status string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.entry(name).Status = status
	sm.closeIfFinished(name)
}

func (sm *statusManager) MarkRunning(name string, pid int, startTime time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s := sm.entry(name)
	s.Status = StatusRunning
	s.PID = pid
	s.StartTime = startTime
}

func (sm *statusManager) MarkFinished(name string, exitCode int, endTime time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s := sm.entry(name)
	s.Status = StatusCompleted
	if exitCode != 0 {
		s.Status = StatusFailed
	}
	s.ExitCode = exitCode
	s.EndTime = endTime
	sm.closeIfFinished(name)
}

func (sm *statusManager) MarkDetached(name string, pid int, startTime time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s := sm.entry(name)
	s.Status = StatusDetached
	s.PID = pid
	s.StartTime = startTime
	sm.closeIfFinished(name)
}

func (sm *statusManager) Snapshot(name string) ExecutionStatus {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return *sm.entry(name)
}

func (sm *statusManager) Done(name string) <-chan struct{} {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.entry(name)
	return sm.done[name]
}

func (sm *statusManager) closeIfFinished(name string) {
	if !sm.statusMap[name].Finished() {
		return
	}
	select {
	case <-sm.done[name]:
	default:
		close(sm.done[name])
	}
}
