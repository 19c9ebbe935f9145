package reconcile

import (
	"net/url"
	"strings"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/models"
)

// isFallbackLike reports whether a display name looks generated rather than
// human-authored: URL-shaped, or case-insensitively equal to the step's own
// search name, kind, operator, or "<operator> combine". The server echoes
// names like these back for steps the user never renamed; they must not
// clobber a curated name.
func isFallbackLike(name string, step models.Step) bool {
	if name == "" {
		return true
	}
	if isURLShaped(name) {
		return true
	}

	lowered := strings.ToLower(strings.TrimSpace(name))
	if step.SearchName != "" && lowered == strings.ToLower(step.SearchName) {
		return true
	}

	kind := graph.Classify(step)
	if lowered == string(kind) {
		return true
	}

	if step.Operator != "" {
		op := strings.ToLower(step.Operator)
		if lowered == op || lowered == op+" combine" {
			return true
		}
	}

	return false
}

func isURLShaped(name string) bool {
	trimmed := strings.TrimSpace(name)
	if strings.HasPrefix(strings.ToLower(trimmed), "www.") {
		return true
	}
	u, err := url.Parse(trimmed)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// resolveDisplayName picks the name for a reconciled step. The existing name
// survives when it is curated; a curated incoming name wins only over a
// fallback-like existing one. When neither is curated the name falls back to
// the search name, then the kind, then the step id.
func resolveDisplayName(incoming string, existing string, step models.Step) string {
	existingCurated := existing != "" && !isFallbackLike(existing, step)
	incomingCurated := incoming != "" && !isFallbackLike(incoming, step)

	if existingCurated {
		return existing
	}
	if incomingCurated {
		return incoming
	}

	if step.SearchName != "" {
		return step.SearchName
	}
	if kind := graph.Classify(step); kind != "" {
		return string(kind)
	}
	return step.ID
}
