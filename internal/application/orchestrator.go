package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"smart-mirror/internal/domain"
)

// Collaborators are the optional side-effect ports of the Orchestrator.
// A nil Camera makes PHOTO ask the display to capture instead.
type Collaborators struct {
	Speaker Speaker
	Camera  Camera
	Photos  PhotoStore
	Weather WeatherProvider
	Advisor OutfitAdvisor
	Linker  GalleryLinker
	Clock   Clock
	Rules   []Rule
}

type Orchestrator struct {
	classifier Classifier
	events     EventPublisher
	speaker    Speaker
	camera     Camera
	photos     PhotoStore
	weather    WeatherProvider
	advisor    OutfitAdvisor
	linker     GalleryLinker
	clock      Clock
	rules      []Rule
	gate       *Gate
	logger     *slog.Logger
}

func NewOrchestrator(
	classifier Classifier,
	events EventPublisher,
	collab Collaborators,
	logger *slog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		classifier: classifier,
		events:     events,
		speaker:    collab.Speaker,
		camera:     collab.Camera,
		photos:     collab.Photos,
		weather:    collab.Weather,
		advisor:    collab.Advisor,
		linker:     collab.Linker,
		clock:      collab.Clock,
		rules:      collab.Rules,
		gate:       NewGate(),
		logger:     logger,
	}
	if o.speaker == nil {
		o.speaker = &NoopSpeaker{}
	}
	if o.clock == nil {
		o.clock = SystemClock{}
	}
	if o.rules == nil {
		o.rules = DefaultRules
	}
	return o
}

// Handle runs one utterance through noise filtering, classification,
// confirmation and dispatch. The boolean is false when the utterance was
// ignored as noise.
func (o *Orchestrator) Handle(ctx context.Context, raw string) (domain.Payload, bool) {
	turnID := uuid.NewString()
	logger := o.logger.With("turn_id", turnID)

	text := Normalize(raw)
	if IsNoise(text) {
		logger.Debug("ignoring noise", "text", text)
		o.emit(ctx, domain.EventVoiceEnd, domain.TurnEnd{TurnID: turnID, Ignored: true})
		return domain.Payload{}, false
	}

	logger.Info("voice intent received", "text", text)
	o.emit(ctx, domain.EventVoiceText, map[string]string{"text": text})

	result, err := o.classifier.Classify(ctx, text)
	if err != nil {
		logger.Error("classifying", "error", err)
		return o.finish(ctx, turnID, domain.ErrorPayload(fmt.Errorf("classifying: %w", err))), true
	}

	return o.finish(ctx, turnID, o.route(ctx, text, result)), true
}

func (o *Orchestrator) route(ctx context.Context, text string, result domain.IntentResult) domain.Payload {
	if action, ok := result.Action(); ok {
		if action.NeedsConfirmation {
			return o.awaitConfirmation(ctx, text, action)
		}
		if action.Kind.Known() {
			return o.dispatch(ctx, text, action)
		}
		o.logger.Warn("unsupported structured intent", "kind", action.Kind)
	}

	if kind := MatchRule(o.rules, text); kind != domain.KindUnknown {
		return o.dispatch(ctx, text, domain.StructuredAction{Kind: kind})
	}

	if result.IsPlainText() && result.Text() != "" {
		return domain.Payload{Type: domain.PayloadChat, Say: result.Text()}
	}

	return unknownPayload()
}

func (o *Orchestrator) awaitConfirmation(ctx context.Context, text string, action domain.StructuredAction) domain.Payload {
	if o.gate.Put(Pending{Action: action, Text: text, At: o.clock.Now()}) {
		o.logger.Info("replacing pending confirmation", "kind", action.Kind)
	}
	o.emit(ctx, domain.EventConfirmIntent, action)

	return domain.Payload{
		Type:     domain.PayloadAwaitingConfirmation,
		Say:      action.Question,
		Question: action.Question,
		Action:   &action,
	}
}

// Confirm dispatches the pending action, if any, and clears the gate.
func (o *Orchestrator) Confirm(ctx context.Context) domain.Payload {
	turnID := uuid.NewString()

	pending, ok := o.gate.Take()
	if !ok {
		return o.finish(ctx, turnID, domain.Payload{Type: domain.PayloadUnknown, Say: "There is nothing to confirm."})
	}

	o.logger.Info("confirmed pending action", "turn_id", turnID, "kind", pending.Action.Kind)

	action := pending.Action
	action.NeedsConfirmation = false
	action.Question = ""
	if !action.Kind.Known() {
		action.Kind = MatchRule(o.rules, pending.Text)
	}
	return o.finish(ctx, turnID, o.dispatch(ctx, pending.Text, action))
}

// Decline drops the pending action without dispatching it.
func (o *Orchestrator) Decline(ctx context.Context) domain.Payload {
	turnID := uuid.NewString()

	if !o.gate.Clear() {
		return o.finish(ctx, turnID, domain.Payload{Type: domain.PayloadUnknown, Say: "There is nothing to cancel."})
	}
	o.logger.Info("declined pending action", "turn_id", turnID)
	return o.finish(ctx, turnID, domain.Payload{Type: domain.PayloadCancelled, Say: "Okay, cancelled."})
}

// PendingConfirmation exposes the gate for status endpoints.
func (o *Orchestrator) PendingConfirmation() (Pending, bool) {
	return o.gate.Peek()
}

// HandleFrame analyses a display-supplied camera frame for outfit advice.
// Only malformed images are returned as errors.
func (o *Orchestrator) HandleFrame(ctx context.Context, dataURL string) (domain.Payload, error) {
	if _, _, err := domain.DecodeDataURL(dataURL); err != nil {
		return domain.Payload{}, err
	}

	turnID := uuid.NewString()
	if o.advisor == nil {
		return o.finish(ctx, turnID, domain.Payload{
			Type: domain.PayloadError,
			Say:  "Outfit analysis is not available.",
		}), nil
	}

	advice, err := o.advisor.Advise(ctx, dataURL)
	if err != nil {
		o.logger.Error("analyzing outfit", "turn_id", turnID, "error", err)
		return o.finish(ctx, turnID, domain.ErrorPayload(fmt.Errorf("analyzing outfit: %w", err))), nil
	}

	say := advice.Suggestion
	if say == "" {
		say = advice.Description
	}
	return o.finish(ctx, turnID, domain.Payload{
		Type:        domain.PayloadOutfit,
		Say:         say,
		Description: advice.Description,
		Suggestion:  advice.Suggestion,
	}), nil
}

// HandleUploadedPhoto stores a photo captured by the display.
func (o *Orchestrator) HandleUploadedPhoto(ctx context.Context, dataURL string) (domain.Payload, error) {
	data, mime, err := domain.DecodeDataURL(dataURL)
	if err != nil {
		return domain.Payload{}, err
	}

	turnID := uuid.NewString()
	if o.photos == nil {
		return o.finish(ctx, turnID, domain.ErrorPayload(fmt.Errorf("no photo store configured"))), nil
	}

	ext := ".jpg"
	if mime == "image/png" {
		ext = ".png"
	}
	photo, err := o.photos.Save("photo", ext, data)
	if err != nil {
		o.logger.Error("saving uploaded photo", "turn_id", turnID, "error", err)
		return o.finish(ctx, turnID, domain.ErrorPayload(fmt.Errorf("saving photo: %w", err))), nil
	}

	return o.finish(ctx, turnID, o.photoPayload(photo)), nil
}

// finish is the single exit of every turn: broadcast the payload, signal the
// end of the turn, then queue the spoken text.
func (o *Orchestrator) finish(ctx context.Context, turnID string, p domain.Payload) domain.Payload {
	o.logger.Info("turn complete", "turn_id", turnID, "type", p.Type, "say", p.Say)

	o.emit(ctx, domain.EventVoiceResponse, p)
	o.emit(ctx, domain.EventVoiceEnd, domain.TurnEnd{TurnID: turnID})
	o.speaker.Enqueue(p.Say)

	return p
}

func (o *Orchestrator) emit(ctx context.Context, event domain.Event, data any) {
	if err := o.events.Publish(ctx, event, data); err != nil {
		o.logger.Warn("publishing event", "event", event, "error", err)
	}
}

func unknownPayload() domain.Payload {
	return domain.Payload{Type: domain.PayloadUnknown, Say: "Sorry, I didn't understand."}
}
