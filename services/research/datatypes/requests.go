// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the research service.
//
// This file contains request and response types for the research endpoints
// plus the SSE stream event wire type. For the session model, see session.go.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants for Security Compliance
// =============================================================================

const (
	// MaxQueryBytes is the maximum size of a research query.
	// Unbounded query input mitigation.
	MaxQueryBytes = 16 * 1024 // 16KB

	// MaxRequestedSteps is the maximum step cap a caller may request.
	MaxRequestedSteps = 20
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// researchValidate is the validator instance for research datatypes.
// Initialized in init() with custom validators.
var researchValidate *validator.Validate

func init() {
	researchValidate = validator.New()
	_ = researchValidate.RegisterValidation("maxbytes", validateQueryBytes)
}

// validateQueryBytes enforces MaxQueryBytes on string fields. Byte length,
// not rune count, so oversized multi-byte payloads are rejected too.
func validateQueryBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxQueryBytes
}

// =============================================================================
// Requests
// =============================================================================

// StartResearchRequest is the body of POST /v1/research/sessions.
//
// # Fields
//
//   - Query: The research question. Required, bounded by MaxQueryBytes.
//   - UserID: Opaque owner identifier supplied by the caller.
//   - MaxSteps: Optional per-session step cap; 0 means the engine default.
type StartResearchRequest struct {
	Query    string `json:"query" binding:"required" validate:"required,maxbytes"`
	UserID   string `json:"user_id" validate:"max=256"`
	MaxSteps int    `json:"max_steps" validate:"gte=0,lte=20"`
}

// Validate checks the request against the shared validator.
func (r *StartResearchRequest) Validate() error {
	if err := researchValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid research request: %w", err)
	}
	return nil
}

// ResearchWSRequest is the first client message on the research WebSocket.
// Same field contract as StartResearchRequest.
type ResearchWSRequest struct {
	Query    string `json:"query" validate:"required,maxbytes"`
	UserID   string `json:"user_id,omitempty" validate:"max=256"`
	MaxSteps int    `json:"max_steps,omitempty" validate:"gte=0,lte=20"`
}

// Validate checks the request against the shared validator.
func (r *ResearchWSRequest) Validate() error {
	if err := researchValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid research request: %w", err)
	}
	return nil
}

// =============================================================================
// Stream Events
// =============================================================================

// StreamEvent is the wire type for research SSE and WebSocket streaming.
//
// # Description
//
// Each event carries a hash chain for integrity verification: Hash is the
// SHA-256 of the event content and PrevHash links to the previous event,
// providing chain of custody for step results and sources.
//
// Event types: "status", "step", "final", "error".
type StreamEvent struct {
	Id        string           `json:"id,omitempty"`
	Type      string           `json:"type"`
	Message   string           `json:"message,omitempty"`
	Step      *Step            `json:"step,omitempty"`
	Session   *SessionSnapshot `json:"session,omitempty"`
	Error     string           `json:"error,omitempty"`
	SessionId string           `json:"session_id,omitempty"`
	CreatedAt int64            `json:"created_at,omitempty"`
	Hash      string           `json:"hash,omitempty"`
	PrevHash  string           `json:"prev_hash,omitempty"`
}
