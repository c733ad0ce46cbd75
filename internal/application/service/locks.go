package service

import "sync"

// WorkflowLocks serializes mutations per workflow id. Different workflows are
// fully independent and mutate in parallel; all services touching one
// workflow's state share the same WorkflowLocks instance so the
// write-and-recompute step is a single critical section.
type WorkflowLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWorkflowLocks creates an empty lock table
func NewWorkflowLocks() *WorkflowLocks {
	return &WorkflowLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for the given workflow id and returns its unlock
// function
func (l *WorkflowLocks) Lock(workflowID string) func() {
	l.mu.Lock()
	m, ok := l.locks[workflowID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[workflowID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
