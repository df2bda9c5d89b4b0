package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"smart-mirror/internal/domain"
)

// Classifier asks a chat model for either conversational text or a
// structured action. Anything that does not parse and validate as an
// action is returned as plain text.
type Classifier struct {
	completer Completer
	logger    *slog.Logger
}

func NewClassifier(completer Completer, logger *slog.Logger) *Classifier {
	return &Classifier{completer: completer, logger: logger}
}

func (c *Classifier) Classify(ctx context.Context, text string) (domain.IntentResult, error) {
	raw, err := c.completer.Complete(ctx, SystemPrompt, text)
	if err != nil {
		return domain.IntentResult{}, fmt.Errorf("%w: %w", domain.ErrClassifierUnavailable, err)
	}

	result := ParseResult(raw)
	if action, ok := result.Action(); ok {
		c.logger.Debug("structured intent", "kind", action.Kind, "needs_confirmation", action.NeedsConfirmation)
	}
	return result, nil
}

type actionJSON struct {
	Intent              string         `json:"intent"`
	Details             map[string]any `json:"details"`
	NeedsConfirmation   bool           `json:"needs_confirmation"`
	ConfirmationMessage *string        `json:"confirmation_message"`
	Question            *string        `json:"question"`
}

// ParseResult interprets a model reply. Fenced JSON is accepted.
func ParseResult(raw string) domain.IntentResult {
	body := stripFences(raw)
	if !strings.HasPrefix(body, "{") {
		return domain.PlainText(strings.TrimSpace(raw))
	}

	var wire actionJSON
	if err := json.Unmarshal([]byte(body), &wire); err != nil || wire.Intent == "" {
		return domain.PlainText(strings.TrimSpace(raw))
	}

	action := domain.StructuredAction{
		Kind:              domain.ParseKind(wire.Intent),
		Details:           wire.Details,
		NeedsConfirmation: wire.NeedsConfirmation,
	}
	if wire.ConfirmationMessage != nil {
		action.ConfirmationMessage = strings.TrimSpace(*wire.ConfirmationMessage)
	}
	if wire.Question != nil {
		action.Question = strings.TrimSpace(*wire.Question)
	}
	if err := action.Validate(); err != nil {
		return domain.PlainText(strings.TrimSpace(raw))
	}
	return domain.Structured(action)
}
