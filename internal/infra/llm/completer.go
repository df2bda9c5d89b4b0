package llm

import (
	"context"
	"strings"
)

// Completer sends one system + user exchange to a chat model and returns
// the raw reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
