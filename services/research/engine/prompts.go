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

import "github.com/AleutianAI/AleutianResearch/services/research/datatypes"

// =============================================================================
// Fixed Prompt Fragments
// =============================================================================

// goalInstruction is the fixed instruction used to derive a research goal
// from the raw query.
const goalInstruction = "Produce one action-verb sentence describing the " +
	"research goal for the following request. The goal must be achievable " +
	"in 5-7 analysis steps. Respond with the sentence only."

// goalFallbackPrefix is prepended to the raw query when goal extraction
// degrades to the deterministic fallback.
const goalFallbackPrefix = "Perform an in-depth analysis of the request: "

// responseRequirements is appended to every step generation prompt.
const responseRequirements = "Response requirements:\n" +
	"- Be specific and grounded in the provided context.\n" +
	"- State uncertainty explicitly instead of guessing.\n" +
	"- Keep the response focused on the step objective."

// suggestionInstruction asks for follow-up step ideas after a step completes.
const suggestionInstruction = "Based on the step result above, suggest 2-3 " +
	"short follow-up research steps, one per line, no numbering."

// noResultsMessage is the synthesizer output when no step completed.
const noResultsMessage = "The research session produced no concrete results. " +
	"No steps completed successfully."

// defaultSuggestions is returned when suggestion generation fails.
func defaultSuggestions() []string {
	return []string{
		"Gather additional context on the topic",
		"Validate the findings so far against retrieved sources",
	}
}

// stepInstruction returns the fixed generation instruction for a step type.
func stepInstruction(t datatypes.StepType) string {
	switch t {
	case datatypes.StepTypeInitialAnalysis:
		return "Break the request down: identify the key aspects, terms and " +
			"sub-questions that the research must address."
	case datatypes.StepTypeContextGathering:
		return "Summarize what the retrieved information contributes to the " +
			"research goal and note any gaps in coverage."
	case datatypes.StepTypeDeepAnalysis:
		return "Perform an in-depth analysis of specific aspects using the " +
			"retrieved information."
	case datatypes.StepTypeSynthesis:
		return "Combine the findings of the previous steps into a coherent " +
			"intermediate picture, resolving contradictions where possible."
	case datatypes.StepTypeValidation:
		return "Critically re-examine the previous findings: check them for " +
			"consistency, unsupported claims and missing evidence."
	case datatypes.StepTypeFinalSummary:
		return "Produce a final, self-contained summary answering the " +
			"original request based on everything established so far."
	default:
		return "Analyze the request in the context provided."
	}
}
