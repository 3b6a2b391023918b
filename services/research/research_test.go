// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package research

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Config Default Tests
// =============================================================================

func TestApplyConfigDefaults_FillsZeroValues(t *testing.T) {
	cfg := applyConfigDefaults(Config{})

	assert.Equal(t, 12230, cfg.Port)
	assert.Equal(t, "local", cfg.LLMBackend)
	assert.Equal(t, "aleutian-otel-collector:4317", cfg.OTelEndpoint)
	assert.Equal(t, 10*time.Minute, cfg.RetentionInterval)
	assert.Equal(t, 24*time.Hour, cfg.RetentionWindow)
	// Zero value keeps the sweeper enabled.
	assert.False(t, cfg.RetentionDisabled)
}

func TestApplyConfigDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := applyConfigDefaults(Config{
		Port:              9000,
		LLMBackend:        "openai",
		RetentionInterval: time.Minute,
		RetentionWindow:   time.Hour,
	})

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "openai", cfg.LLMBackend)
	assert.Equal(t, time.Minute, cfg.RetentionInterval)
	assert.Equal(t, time.Hour, cfg.RetentionWindow)
}

func TestApplyConfigDefaults_RetentionCanBeDisabled(t *testing.T) {
	cfg := applyConfigDefaults(Config{RetentionDisabled: true})

	assert.True(t, cfg.RetentionDisabled)
}
