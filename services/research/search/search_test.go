// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func documentResponse(docs ...map[string]interface{}) *models.GraphQLResponse {
	list := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		list = append(list, doc)
	}
	return &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				"ResearchDocument": list,
			},
		},
	}
}

func TestParseDocumentResponse_NilResponse(t *testing.T) {
	_, err := parseDocumentResponse(nil)

	assert.Error(t, err)
}

func TestParseDocumentResponse_EmptyData(t *testing.T) {
	parsed, err := parseDocumentResponse(&models.GraphQLResponse{})

	require.NoError(t, err)
	assert.Empty(t, parsed.Get.ResearchDocument)
}

func TestParseDocumentResponse_ParsesDocuments(t *testing.T) {
	resp := documentResponse(
		map[string]interface{}{
			"title":   "Raft overview",
			"content": "Leader election and log replication.",
			"source":  "raft.md",
			"_additional": map[string]interface{}{
				"certainty": 0.91,
			},
		},
		map[string]interface{}{
			"title":   "Paxos notes",
			"content": "Classic consensus.",
			"source":  "paxos.md",
		},
	)

	parsed, err := parseDocumentResponse(resp)

	require.NoError(t, err)
	require.Len(t, parsed.Get.ResearchDocument, 2)

	first := parsed.Get.ResearchDocument[0]
	assert.Equal(t, "Raft overview", first.Title)
	assert.Equal(t, "Leader election and log replication.", first.Content)
	assert.Equal(t, "raft.md", first.Source)
	require.NotNil(t, first.Additional.Certainty)
	assert.InDelta(t, 0.91, *first.Additional.Certainty, 1e-9)

	// A document without _additional parses with a nil certainty; Search
	// treats that as a zero score rather than an error.
	second := parsed.Get.ResearchDocument[1]
	assert.Equal(t, "Paxos notes", second.Title)
	assert.Nil(t, second.Additional.Certainty)
}
