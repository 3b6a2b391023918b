// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"sync"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

// =============================================================================
// Session Registry
// =============================================================================

// SessionRegistry is the process-wide map of research sessions.
//
// # Description
//
// Tracks every session the engine has started. Insertion enforces the
// concurrency cap: a session is rejected while the number of non-terminal
// sessions is at the cap. Terminal sessions remain registered for later
// status/audit queries until the retention sweeper evicts them.
//
// # Thread Safety
//
// Safe for concurrent use from start/execute/cancel/status callers. All
// map access goes through the internal mutex.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*datatypes.Session
	capacity int
}

// NewSessionRegistry creates a registry with the given non-terminal cap.
func NewSessionRegistry(capacity int) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*datatypes.Session),
		capacity: capacity,
	}
}

// Insert registers a session, enforcing the concurrency cap.
//
// # Outputs
//
//   - error: ErrCapacityExceeded when the count of non-terminal sessions
//     already equals the cap; nil otherwise.
func (r *SessionRegistry) Insert(session *datatypes.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := 0
	for _, s := range r.sessions {
		if !s.CurrentStatus().IsTerminal() {
			active++
		}
	}
	if active >= r.capacity {
		return ErrCapacityExceeded
	}
	r.sessions[session.ID] = session
	return nil
}

// Get returns the session for id, with ok=false when absent. Lookups for
// unknown ids never panic or allocate.
func (r *SessionRegistry) Get(id string) (*datatypes.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ActiveCount returns the number of non-terminal sessions.
func (r *SessionRegistry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	active := 0
	for _, s := range r.sessions {
		if !s.CurrentStatus().IsTerminal() {
			active++
		}
	}
	return active
}

// Len returns the total number of registered sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshots returns read-only views of every registered session.
func (r *SessionRegistry) Snapshots() []datatypes.SessionSnapshot {
	r.mu.RLock()
	sessions := make([]*datatypes.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	// Snapshot outside the registry lock; each session has its own lock.
	out := make([]datatypes.SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// EvictTerminalBefore removes terminal sessions that completed before the
// cutoff. Non-terminal sessions are never evicted. Returns the number of
// sessions removed.
func (r *SessionRegistry) EvictTerminalBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		snap := s.Snapshot()
		if !snap.Status.IsTerminal() || snap.CompletedAt == nil {
			continue
		}
		if snap.CompletedAt.Before(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}
