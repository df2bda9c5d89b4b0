package domain

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindSetAlarm      Kind = "SET_ALARM"
	KindOutfitSuggest Kind = "OUTFIT_SUGGEST"
	KindPhoto         Kind = "PHOTO"
	KindQR            Kind = "QR"
	KindWeather       Kind = "WEATHER"
	KindTime          Kind = "TIME"
	KindMusicPlay     Kind = "MUSIC_PLAY"
	KindMusicPause    Kind = "MUSIC_PAUSE"
	KindMusicResume   Kind = "MUSIC_RESUME"
	KindMusicNext     Kind = "MUSIC_NEXT"
	KindMusicPrev     Kind = "MUSIC_PREV"
	KindMusicStop     Kind = "MUSIC_STOP"
	KindUnknown       Kind = "UNKNOWN"
)

var knownKinds = map[Kind]bool{
	KindSetAlarm:      true,
	KindOutfitSuggest: true,
	KindPhoto:         true,
	KindQR:            true,
	KindWeather:       true,
	KindTime:          true,
	KindMusicPlay:     true,
	KindMusicPause:    true,
	KindMusicResume:   true,
	KindMusicNext:     true,
	KindMusicPrev:     true,
	KindMusicStop:     true,
}

// ParseKind maps a model-provided intent name ("set_alarm", "SET_ALARM",
// "music-play") onto a Kind. Unrecognized names map to KindUnknown.
func ParseKind(name string) Kind {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.NewReplacer("-", "_", " ", "_").Replace(n)
	k := Kind(n)
	if knownKinds[k] {
		return k
	}
	return KindUnknown
}

// Known reports whether k is a dispatchable kind.
func (k Kind) Known() bool {
	return knownKinds[k]
}

var (
	ErrMissingConfirmation = errors.New("action without confirmation needs a confirmation message")
	ErrMissingQuestion     = errors.New("action awaiting confirmation needs a question")
	ErrAmbiguousAction     = errors.New("action sets both confirmation message and question")
)

type StructuredAction struct {
	Kind                Kind           `json:"intent"`
	Details             map[string]any `json:"details,omitempty"`
	NeedsConfirmation   bool           `json:"needs_confirmation"`
	ConfirmationMessage string         `json:"confirmation_message,omitempty"`
	Question            string         `json:"question,omitempty"`
}

// Validate enforces that exactly one of ConfirmationMessage and Question is
// set, and that it is the one matching NeedsConfirmation.
func (a StructuredAction) Validate() error {
	hasMsg := a.ConfirmationMessage != ""
	hasQuestion := a.Question != ""

	switch {
	case hasMsg && hasQuestion:
		return ErrAmbiguousAction
	case a.NeedsConfirmation && !hasQuestion:
		return ErrMissingQuestion
	case !a.NeedsConfirmation && !hasMsg:
		return ErrMissingConfirmation
	}
	return nil
}

// Detail returns a string detail, or "" when absent or not a string.
func (a StructuredAction) Detail(key string) string {
	if a.Details == nil {
		return ""
	}
	s, _ := a.Details[key].(string)
	return s
}

// IntentResult is either plain text to speak or a structured action.
type IntentResult struct {
	text   string
	action *StructuredAction
}

func PlainText(text string) IntentResult {
	return IntentResult{text: text}
}

func Structured(action StructuredAction) IntentResult {
	return IntentResult{action: &action}
}

func (r IntentResult) Action() (StructuredAction, bool) {
	if r.action == nil {
		return StructuredAction{}, false
	}
	return *r.action, true
}

func (r IntentResult) Text() string {
	return r.text
}

func (r IntentResult) IsPlainText() bool {
	return r.action == nil
}
