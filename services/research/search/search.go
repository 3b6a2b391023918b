// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search provides the semantic-search collaborator for the
// research engine.
//
// The engine only depends on the Searcher interface; the production
// implementation queries Weaviate's ResearchDocument class via GraphQL.
// Search failures are never fatal to a research step: callers degrade to
// an empty source list.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("aleutian.research.search")

// documentClass is the Weaviate class holding research corpus documents.
const documentClass = "ResearchDocument"

// =============================================================================
// Interface Definition
// =============================================================================

// Result is a single retrieved evidence snippet.
//
// Callers copy Result values into their own Source objects; results are
// never shared back to the searcher.
type Result struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Origin  string  `json:"origin"`
	Score   float64 `json:"score"`
}

// Searcher defines the contract for the semantic-search collaborator.
//
// # Description
//
// Searcher abstracts retrieval so the engine can be tested against fakes
// and so alternative backends can be plugged in.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Searcher interface {
	// Search returns up to limit results for the query with relevance
	// score >= scoreThreshold, ordered by descending score.
	Search(ctx context.Context, query string, limit int, scoreThreshold float64) ([]Result, error)
}

// =============================================================================
// Weaviate Implementation
// =============================================================================

// WeaviateSearcher implements Searcher backed by Weaviate nearText search.
//
// # Description
//
// Queries the ResearchDocument class using Weaviate's nearText operator
// with a certainty floor. Certainty is used as the relevance score because
// it is always within [0, 1] regardless of the distance metric.
//
// # Thread Safety
//
// Safe for concurrent use. The underlying Weaviate client handles
// connection pooling.
type WeaviateSearcher struct {
	client *weaviate.Client
}

// NewWeaviateSearcher creates a searcher over the given Weaviate client.
func NewWeaviateSearcher(client *weaviate.Client) *WeaviateSearcher {
	return &WeaviateSearcher{client: client}
}

// documentQueryResponse mirrors the GraphQL result shape for parsing.
type documentQueryResponse struct {
	Get struct {
		ResearchDocument []struct {
			Title      string `json:"title"`
			Content    string `json:"content"`
			Source     string `json:"source"`
			Additional struct {
				Certainty *float64 `json:"certainty"`
			} `json:"_additional"`
		} `json:"ResearchDocument"`
	} `json:"Get"`
}

// Search implements the Searcher interface.
//
// # Description
//
// Runs a nearText query against the ResearchDocument class, requesting
// title, content, source and certainty. Results below scoreThreshold are
// excluded by the certainty floor on the query itself.
//
// # Outputs
//
//   - []Result: Retrieved snippets, highest certainty first.
//   - error: Non-nil if the query or parsing fails. Callers treat a
//     failure as zero sources.
func (s *WeaviateSearcher) Search(ctx context.Context, query string, limit int,
	scoreThreshold float64) ([]Result, error) {

	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()

	slog.Debug("Searching research documents",
		"limit", limit, "score_threshold", scoreThreshold)

	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query}).
		WithCertainty(float32(scoreThreshold))

	fields := []graphql.Field{
		{Name: "title"},
		{Name: "content"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(documentClass).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		slog.Error("Weaviate research search failed", "error", err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search returned %d graphql errors, first: %s",
			len(result.Errors), result.Errors[0].Message)
	}

	parsed, err := parseDocumentResponse(result)
	if err != nil {
		slog.Error("Failed to parse research search results", "error", err)
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	results := make([]Result, 0, len(parsed.Get.ResearchDocument))
	for _, doc := range parsed.Get.ResearchDocument {
		score := 0.0
		if doc.Additional.Certainty != nil {
			score = *doc.Additional.Certainty
		}
		results = append(results, Result{
			Title:   doc.Title,
			Content: doc.Content,
			Origin:  doc.Source,
			Score:   score,
		})
	}

	slog.Debug("Research search returned sources", "count", len(results))
	return results, nil
}

// parseDocumentResponse converts the untyped GraphQL response into the
// typed shape via a JSON round trip.
func parseDocumentResponse(resp *models.GraphQLResponse) (*documentQueryResponse, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql data: %w", err)
	}
	var parsed documentQueryResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal graphql data: %w", err)
	}
	return &parsed, nil
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Searcher = (*WeaviateSearcher)(nil)
