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
	"errors"
	"fmt"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

var (
	// ErrCapacityExceeded is returned by Start when the number of
	// non-terminal sessions has reached the configured cap. Fatal to that
	// call only; existing sessions are unaffected.
	ErrCapacityExceeded = errors.New("maximum concurrent research sessions reached")

	// ErrSessionNotFound is returned by Execute when the session id is
	// unknown. Status and Cancel report absence through their boolean
	// returns instead.
	ErrSessionNotFound = errors.New("research session not found")

	// ErrSessionNotRunnable is returned by Execute when the session has
	// already been executed or has reached a terminal state.
	ErrSessionNotRunnable = errors.New("research session is not in a runnable state")
)

// StepExecutionError wraps a failure inside a single step. It is absorbed
// by the step loop: the step is marked Failed and the session continues.
type StepExecutionError struct {
	StepID   string
	StepType string
	Err      error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s (%s) failed: %v", e.StepID, e.StepType, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// SessionFatalError wraps a failure that escaped the per-step guard, such
// as a planning failure before any step existed. It marks the whole
// session Failed and propagates to the caller of Execute.
type SessionFatalError struct {
	SessionID string
	Err       error
}

func (e *SessionFatalError) Error() string {
	return fmt.Sprintf("session %s failed: %v", e.SessionID, e.Err)
}

func (e *SessionFatalError) Unwrap() error { return e.Err }
