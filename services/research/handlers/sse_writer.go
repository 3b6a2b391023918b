// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter defines the contract for writing research stream events as
// Server-Sent Events.
//
// # Description
//
// SSEWriter abstracts SSE event serialization and writing, enabling
// testability and separation from HTTP response mechanics. Implementations
// handle the SSE wire format (event: type\ndata: json\n\n) internally.
//
// Each event is automatically assigned:
//   - Id: UUID v4 for ordering and deduplication
//   - CreatedAt: Unix timestamp in milliseconds
//   - Hash: SHA-256 hash of event content for integrity
//   - PrevHash: Hash of previous event for chain verification
//
// # Thread Safety
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Assumptions
//
//   - Caller has set SSE headers via SetSSEHeaders before the first write.
type SSEWriter interface {
	// WriteEvent writes a single SSE event to the response. Id, CreatedAt,
	// Hash and PrevHash are populated automatically; flushes immediately.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteStatus writes a status event with the given message.
	WriteStatus(message string) error

	// WriteStep writes a step event carrying a finished step snapshot.
	WriteStep(step datatypes.Step) error

	// WriteFinal writes the final event carrying the terminal session
	// snapshot. Should only be called once per stream.
	WriteFinal(session datatypes.SessionSnapshot) error

	// WriteError writes an error event. The message must be sanitized;
	// internal details are not exposed to the client.
	WriteError(errMsg string) error

	// WriteKeepAlive sends an SSE comment line (": ping") to prevent
	// idle-connection timeouts during long steps. Comments are not events
	// and do not advance the hash chain.
	WriteKeepAlive() error
}

// =============================================================================
// Struct Definition
// =============================================================================

// sseWriter implements SSEWriter for HTTP SSE responses.
//
// # Description
//
// sseWriter wraps an http.ResponseWriter to emit SSE-formatted events.
// The writer maintains a hash chain for integrity verification: each
// event's Hash is the SHA-256 of its content and PrevHash links to the
// previous event, giving chain of custody over step results.
//
// # Thread Safety
//
// Thread-safe via mutex; the hash chain stays consistent across
// concurrent writers.
//
// # Limitations
//
//   - Cannot be reused across requests.
type sseWriter struct {
	writer   http.ResponseWriter
	flusher  http.Flusher
	prevHash string
	mu       sync.Mutex
}

// NewSSEWriter creates a new SSEWriter for the given ResponseWriter.
//
// # Outputs
//
//   - SSEWriter: Ready to write SSE events.
//   - error: Non-nil if the ResponseWriter does not support flushing.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}

	return &sseWriter{
		writer:   w,
		flusher:  flusher,
		prevHash: "",
	}, nil
}

// =============================================================================
// Methods
// =============================================================================

func (w *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Populate metadata
	event.Id = uuid.New().String()
	event.CreatedAt = time.Now().UnixMilli()
	event.PrevHash = w.prevHash

	// Compute hash of event content (before setting Hash field)
	event.Hash = w.computeEventHash(event)

	// Update chain for next event
	w.prevHash = event.Hash

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Write SSE format: event: type\ndata: json\n\n
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// computeEventHash computes the SHA-256 hash of event content.
//
// # Description
//
// Hashes metadata (Id, Type, CreatedAt, PrevHash) plus all content
// fields. Step and session payloads are JSON-serialized so the hash
// covers results and sources as written.
//
// # Assumptions
//
//   - Called before setting event.Hash.
func (w *sseWriter) computeEventHash(event datatypes.StreamEvent) string {
	stepJSON := ""
	if event.Step != nil {
		if data, err := json.Marshal(event.Step); err == nil {
			stepJSON = string(data)
		}
	}
	sessionJSON := ""
	if event.Session != nil {
		if data, err := json.Marshal(event.Session); err == nil {
			sessionJSON = string(data)
		}
	}

	hashInput := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s|%s|%s",
		event.Id,
		event.Type,
		event.CreatedAt,
		event.PrevHash,
		event.Message,
		event.Error,
		event.SessionId,
		stepJSON,
		sessionJSON,
	)

	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])
}

func (w *sseWriter) WriteStatus(message string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    "status",
		Message: message,
	})
}

func (w *sseWriter) WriteStep(step datatypes.Step) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type: "step",
		Step: &step,
	})
}

func (w *sseWriter) WriteFinal(session datatypes.SessionSnapshot) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:      "final",
		Session:   &session,
		SessionId: session.ID,
	})
}

func (w *sseWriter) WriteError(errMsg string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:  "error",
		Error: errMsg,
	})
}

func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprint(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// SetSSEHeaders configures HTTP response headers for SSE streaming.
// Must be called before any writes to the ResponseWriter.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ SSEWriter = (*sseWriter)(nil)
