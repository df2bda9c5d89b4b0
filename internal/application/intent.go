package application

import (
	"context"

	"smart-mirror/internal/domain"
)

// Classifier turns normalized text into plain text or a structured action.
// An error means the classifier itself could not be reached.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.IntentResult, error)
}

// RulesOnly is the offline classifier: every utterance is routed straight to
// the rule table.
type RulesOnly struct{}

func (RulesOnly) Classify(_ context.Context, _ string) (domain.IntentResult, error) {
	return domain.PlainText(""), nil
}
