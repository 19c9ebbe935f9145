package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func msg(role, content string) models.Message {
	return models.Message{Role: role, Content: content}
}

func TestMergeRejectsShorterIncoming(t *testing.T) {
	current := []models.Message{
		msg(models.MessageRoleUser, "find my contacts"),
		msg(models.MessageRoleAssistant, "Searching..."),
	}
	incoming := []models.Message{
		msg(models.MessageRoleUser, "find my contacts"),
	}

	merged := Merge(current, incoming)
	assert.Equal(t, current, merged)
}

func TestMergeAcceptsLongerIncoming(t *testing.T) {
	current := []models.Message{
		msg(models.MessageRoleUser, "find my contacts"),
	}
	incoming := []models.Message{
		msg(models.MessageRoleUser, "find my contacts"),
		msg(models.MessageRoleAssistant, "Here are your contacts."),
	}

	merged := Merge(current, incoming)
	require.Len(t, merged, 2)
	assert.Equal(t, "Here are your contacts.", merged[1].Content)
}

func TestMergeCarriesEnrichments(t *testing.T) {
	local := msg(models.MessageRoleAssistant, "Running the search now.")
	local.ToolCalls = []models.ToolCall{{ID: "tc-1", Name: "update_strategy"}}
	local.Planning = json.RawMessage(`{"phase": "gather"}`)
	local.Optimization = &models.OptimizationState{Phase: "scoring", Progress: 0.4}

	current := []models.Message{local}
	incoming := []models.Message{msg(models.MessageRoleAssistant, "Running the search now.")}

	merged := Merge(current, incoming)
	require.Len(t, merged, 1)
	assert.Equal(t, local.ToolCalls, merged[0].ToolCalls)
	assert.Equal(t, local.Planning, merged[0].Planning)
	assert.Equal(t, local.Optimization, merged[0].Optimization)
}

func TestMergeIncomingEnrichmentsWin(t *testing.T) {
	local := msg(models.MessageRoleAssistant, "Done.")
	local.ToolCalls = []models.ToolCall{{ID: "tc-local", Name: "update_strategy"}}

	remote := msg(models.MessageRoleAssistant, "Done.")
	remote.ToolCalls = []models.ToolCall{{ID: "tc-remote", Name: "update_strategy"}}

	merged := Merge([]models.Message{local}, []models.Message{remote})
	require.Len(t, merged, 1)
	assert.Equal(t, "tc-remote", merged[0].ToolCalls[0].ID)
}

func TestMergeContentDivergenceTakesIncoming(t *testing.T) {
	local := msg(models.MessageRoleAssistant, "Searching...")
	local.ToolCalls = []models.ToolCall{{ID: "tc-1", Name: "update_strategy"}}

	// Final content differs from the streamed partial; the incoming record
	// replaces it wholesale, enrichments included.
	remote := msg(models.MessageRoleAssistant, "Search complete: 12 results.")

	merged := Merge([]models.Message{local}, []models.Message{remote})
	require.Len(t, merged, 1)
	assert.Equal(t, "Search complete: 12 results.", merged[0].Content)
	assert.Empty(t, merged[0].ToolCalls)
}

func TestMergeEmptyCurrent(t *testing.T) {
	incoming := []models.Message{msg(models.MessageRoleUser, "hello")}
	assert.Equal(t, incoming, Merge(nil, incoming))
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	local := msg(models.MessageRoleAssistant, "Working.")
	local.Citations = []models.Citation{{ID: "cit-1"}}
	current := []models.Message{local}

	incoming := []models.Message{msg(models.MessageRoleAssistant, "Working.")}

	_ = Merge(current, incoming)
	assert.Empty(t, incoming[0].Citations)
}
