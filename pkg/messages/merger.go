// Package messages merges the optimistic, incrementally streamed transcript
// with the periodically re-fetched authoritative one.
package messages

import "github.com/Ramsey-B/fern/pkg/models"

// Merge combines the locally maintained message list with a fetched one. A
// fetched list may only replace local state when it is at least as complete:
// a strictly shorter incoming list is rejected outright, since it can only be
// a stale read taken mid-stream.
//
// Positions where role and content match keep local-only enrichments (tool
// calls, citations, sub-agent activity, planning artifacts, optimization
// telemetry) that the fetch is too stale to carry yet. Positions where
// content differs take the incoming record outright; the server is
// authoritative for final content.
func Merge(current, incoming []models.Message) []models.Message {
	if len(incoming) < len(current) {
		return current
	}

	merged := make([]models.Message, len(incoming))
	copy(merged, incoming)

	for i := range current {
		local := current[i]
		if local.Role != merged[i].Role || local.Content != merged[i].Content {
			continue
		}
		carryEnrichments(&merged[i], local)
	}

	return merged
}

// carryEnrichments copies enrichment fields the incoming record lacks from
// the local one. Fields the incoming record already carries win.
func carryEnrichments(into *models.Message, local models.Message) {
	if len(into.ToolCalls) == 0 && len(local.ToolCalls) > 0 {
		into.ToolCalls = local.ToolCalls
	}
	if len(into.Citations) == 0 && len(local.Citations) > 0 {
		into.Citations = local.Citations
	}
	if len(into.SubAgents) == 0 && len(local.SubAgents) > 0 {
		into.SubAgents = local.SubAgents
	}
	if len(into.Planning) == 0 && len(local.Planning) > 0 {
		into.Planning = local.Planning
	}
	if into.Optimization == nil && local.Optimization != nil {
		into.Optimization = local.Optimization
	}
}
