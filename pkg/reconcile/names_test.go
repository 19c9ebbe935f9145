package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestIsFallbackLike(t *testing.T) {
	searchStep := models.Step{ID: "s1", Kind: models.StepKindSearch, SearchName: "saved_contacts"}
	combineStep := models.Step{ID: "c1", Kind: models.StepKindCombine, Operator: "and"}

	tests := []struct {
		name     string
		value    string
		step     models.Step
		fallback bool
	}{
		{"empty", "", searchStep, true},
		{"url with scheme", "https://example.com/query/9", searchStep, true},
		{"www prefix", "www.example.com", searchStep, true},
		{"echoed search name", "saved_contacts", searchStep, true},
		{"echoed search name case-insensitive", "Saved_Contacts", searchStep, true},
		{"kind name", "search", searchStep, true},
		{"operator", "and", combineStep, true},
		{"operator combine", "and combine", combineStep, true},
		{"operator combine case-insensitive", "AND Combine", combineStep, true},
		{"curated name", "People from the conference", searchStep, false},
		{"curated short name", "VIPs", combineStep, false},
		{"path without scheme is not url-shaped", "contacts/recent", searchStep, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fallback, isFallbackLike(tt.value, tt.step))
		})
	}
}

func TestResolveDisplayName(t *testing.T) {
	step := models.Step{ID: "s1", Kind: models.StepKindSearch, SearchName: "saved_contacts"}

	tests := []struct {
		name     string
		incoming string
		existing string
		want     string
	}{
		{"existing curated wins", "https://x.test/1", "Curated Name", "Curated Name"},
		{"incoming curated beats fallback existing", "New Curated", "saved_contacts", "New Curated"},
		{"both fallback uses search name", "", "", "saved_contacts"},
		{"both curated keeps existing", "Incoming Name", "Existing Name", "Existing Name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveDisplayName(tt.incoming, tt.existing, step))
		})
	}
}

func TestResolveDisplayNameFallbackChain(t *testing.T) {
	// No search name: falls back to the kind, then the id.
	kindOnly := models.Step{ID: "t1", Kind: models.StepKindTransform}
	assert.Equal(t, "transform", resolveDisplayName("", "", kindOnly))
}
