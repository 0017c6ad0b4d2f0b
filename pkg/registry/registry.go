// Package registry tracks which live client process belongs to which
// declared session.
package registry

import (
	"sort"
	"sync"
)

// TrackedSession pairs a live client pid with the descriptor that launched it.
type TrackedSession struct {
	PID          int    `json:"pid"`
	DescriptorID string `json:"session"`
}

// Registry maps live client pids to descriptor ids. At most one pid is
// tracked per descriptor, and never more pids than declared sessions.
type Registry struct {
	mu       sync.RWMutex
	total    []string
	declared map[string]struct{}
	tracked  map[int]string
	byID     map[string]int
	pids     []int
}

// New creates a Registry for the declared set of descriptor ids.
func New(total []string) *Registry {
	r := &Registry{
		declared: make(map[string]struct{}, len(total)),
		tracked:  make(map[int]string),
		byID:     make(map[string]int),
	}
	for _, id := range total {
		if _, dup := r.declared[id]; dup {
			continue
		}
		r.declared[id] = struct{}{}
		r.total = append(r.total, id)
	}
	return r
}

// Total returns the declared descriptor ids in declaration order.
func (r *Registry) Total() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.total...)
}

// CanAdmit reports whether a pid for id would currently be accepted.
func (r *Registry) CanAdmit(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.canAdmit(id)
}

func (r *Registry) canAdmit(id string) bool {
	if _, ok := r.declared[id]; !ok {
		return false
	}
	if _, ok := r.byID[id]; ok {
		return false
	}
	return len(r.tracked) < len(r.total)
}

// Register tracks pid for id. It returns false, leaving the registry
// unchanged, if id is unknown or already tracked, if pid is already tracked,
// or if every declared session already has a pid.
func (r *Registry) Register(pid int, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pid <= 0 || !r.canAdmit(id) {
		return false
	}
	if _, ok := r.tracked[pid]; ok {
		return false
	}

	r.tracked[pid] = id
	r.byID[id] = pid
	r.pids = append(r.pids, pid)
	return true
}

// Unregister stops tracking pid. Unknown pids are ignored.
func (r *Registry) Unregister(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.tracked[pid]
	if !ok {
		return
	}
	delete(r.tracked, pid)
	delete(r.byID, id)
	for i, p := range r.pids {
		if p == pid {
			r.pids = append(r.pids[:i], r.pids[i+1:]...)
			break
		}
	}
}

// IsTracked reports whether id currently has a pid.
func (r *Registry) IsTracked(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// IsTrackedPID reports whether pid belongs to any session.
func (r *Registry) IsTrackedPID(pid int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tracked[pid]
	return ok
}

// PIDFor returns the pid tracked for id.
func (r *Registry) PIDFor(id string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pid, ok := r.byID[id]
	return pid, ok
}

// TrackedPIDs returns the tracked pids in registration order.
func (r *Registry) TrackedPIDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]int(nil), r.pids...)
}

// Snapshot returns every tracked session, ordered by pid.
func (r *Registry) Snapshot() []TrackedSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]TrackedSession, 0, len(r.tracked))
	for pid, id := range r.tracked {
		sessions = append(sessions, TrackedSession{PID: pid, DescriptorID: id})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].PID < sessions[j].PID })
	return sessions
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tracked)
}
