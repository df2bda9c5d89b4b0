package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-mirror/internal/application"
	"smart-mirror/internal/domain"
)

type published struct {
	event domain.Event
	data  any
}

type mockPublisher struct {
	mu     sync.Mutex
	events []published
}

func (m *mockPublisher) Publish(_ context.Context, event domain.Event, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, published{event: event, data: data})
	return nil
}

func (m *mockPublisher) names() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		out = append(out, e.event)
	}
	return out
}

func (m *mockPublisher) find(event domain.Event) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.event == event {
			return e.data, true
		}
	}
	return nil, false
}

type mockSpeaker struct {
	said []string
}

func (m *mockSpeaker) Enqueue(text string) {
	m.said = append(m.said, text)
}

type mockClassifier struct {
	results map[string]domain.IntentResult
	err     error
}

func (m *mockClassifier) Classify(_ context.Context, text string) (domain.IntentResult, error) {
	if m.err != nil {
		return domain.IntentResult{}, m.err
	}
	if r, ok := m.results[text]; ok {
		return r, nil
	}
	return domain.PlainText(""), nil
}

type mockCamera struct {
	err   error
	shots int
}

func (m *mockCamera) Capture(_ context.Context, prefix string) (domain.CapturedPhoto, error) {
	if m.err != nil {
		return domain.CapturedPhoto{}, m.err
	}
	m.shots++
	return domain.CapturedPhoto{Filename: prefix + "_1.jpg"}, nil
}

type mockStore struct {
	saved map[string][]byte
}

func (m *mockStore) Save(prefix, ext string, data []byte) (domain.CapturedPhoto, error) {
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	name := prefix + "_1" + ext
	m.saved[name] = data
	return domain.CapturedPhoto{Filename: name}, nil
}

func (m *mockStore) List() ([]string, error) { return nil, nil }

func (m *mockStore) Latest() (string, bool, error) { return "", false, nil }

type mockWeather struct {
	report domain.WeatherReport
	err    error
}

func (m *mockWeather) Current(_ context.Context) (domain.WeatherReport, error) {
	return m.report, m.err
}

type mockLinker struct{}

func (mockLinker) GalleryURL() string           { return "http://mirror.local/gallery" }
func (mockLinker) GalleryQR() (string, error)   { return "cXI=", nil }
func (mockLinker) PhotoURL(file string) string { return "http://mirror.local/captures/" + file }

type mockAdvisor struct {
	advice application.OutfitAdvice
	err    error
}

func (m *mockAdvisor) Advise(_ context.Context, _ string) (application.OutfitAdvice, error) {
	return m.advice, m.err
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type harness struct {
	orch    *application.Orchestrator
	events  *mockPublisher
	speaker *mockSpeaker
}

func newHarness(classifier application.Classifier, collab application.Collaborators) harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := &mockPublisher{}
	speaker := &mockSpeaker{}
	collab.Speaker = speaker
	if collab.Clock == nil {
		collab.Clock = fixedClock{t: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)}
	}
	return harness{
		orch:    application.NewOrchestrator(classifier, events, collab, logger),
		events:  events,
		speaker: speaker,
	}
}

func TestOrchestrator_IgnoresNoise(t *testing.T) {
	h := newHarness(application.RulesOnly{}, application.Collaborators{})

	for _, in := range []string{"", "  ", "Hmm", "okay"} {
		_, handled := h.orch.Handle(context.Background(), in)
		assert.False(t, handled, in)
	}

	assert.Empty(t, h.speaker.said)
	for _, e := range h.events.names() {
		assert.Equal(t, domain.EventVoiceEnd, e)
	}
}

func TestOrchestrator_PlainTextBecomesChat(t *testing.T) {
	classifier := &mockClassifier{results: map[string]domain.IntentResult{
		"tell me a joke": domain.PlainText("Why did the mirror blush?"),
	}}
	h := newHarness(classifier, application.Collaborators{})

	p, handled := h.orch.Handle(context.Background(), "Tell me a joke")
	require.True(t, handled)
	assert.Equal(t, domain.PayloadChat, p.Type)
	assert.Equal(t, "Why did the mirror blush?", p.Say)
	assert.Equal(t, []string{"Why did the mirror blush?"}, h.speaker.said)
}

func TestOrchestrator_ResponseThenEnd(t *testing.T) {
	h := newHarness(application.RulesOnly{}, application.Collaborators{})

	_, handled := h.orch.Handle(context.Background(), "what time is it")
	require.True(t, handled)

	names := h.events.names()
	require.GreaterOrEqual(t, len(names), 2)
	assert.Equal(t, domain.EventVoiceText, names[0])
	assert.Equal(t, domain.EventVoiceResponse, names[len(names)-2])
	assert.Equal(t, domain.EventVoiceEnd, names[len(names)-1])
	assert.Equal(t, []string{"It is 09:30 AM."}, h.speaker.said)
}

func TestOrchestrator_Weather(t *testing.T) {
	temp := 24.0
	h := newHarness(application.RulesOnly{}, application.Collaborators{
		Weather: &mockWeather{report: domain.WeatherReport{Temp: &temp, Description: "clear sky"}},
	})

	p, _ := h.orch.Handle(context.Background(), "what's the weather")
	assert.Equal(t, domain.PayloadWeather, p.Type)
	assert.Equal(t, "The temperature is 24°C with clear sky.", p.Say)
}

func TestOrchestrator_WeatherFailure(t *testing.T) {
	h := newHarness(application.RulesOnly{}, application.Collaborators{
		Weather: &mockWeather{err: errors.New("timeout")},
	})

	p, _ := h.orch.Handle(context.Background(), "weather please")
	assert.Equal(t, domain.PayloadWeather, p.Type)
	assert.Equal(t, "Sorry, I couldn't get the weather right now.", p.Say)
	assert.Equal(t, "timeout", p.Error)
}

func TestOrchestrator_PlayMusic(t *testing.T) {
	tests := []struct {
		in    string
		query string
	}{
		{"play lofi beats", "lofi beats"},
		{"play", "popular songs"},
		{"play some music", "some"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h := newHarness(application.RulesOnly{}, application.Collaborators{})

			p, _ := h.orch.Handle(context.Background(), tt.in)
			assert.Equal(t, domain.PayloadMusic, p.Type)
			assert.Equal(t, "Playing "+tt.query+".", p.Say)
			assert.Equal(t, tt.query, p.Query)

			data, ok := h.events.find(domain.EventMusicPlay)
			require.True(t, ok)
			assert.Equal(t, map[string]string{"query": tt.query}, data)
		})
	}
}

func TestOrchestrator_MusicControls(t *testing.T) {
	tests := []struct {
		in    string
		event domain.Event
	}{
		{"pause", domain.EventMusicPause},
		{"resume the song", domain.EventMusicResume},
		{"next", domain.EventMusicNext},
		{"go back", domain.EventMusicPrev},
		{"stop the music", domain.EventMusicStop},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h := newHarness(application.RulesOnly{}, application.Collaborators{})

			p, _ := h.orch.Handle(context.Background(), tt.in)
			assert.Equal(t, domain.PayloadMusic, p.Type)
			_, ok := h.events.find(tt.event)
			assert.True(t, ok)
		})
	}
}

func TestOrchestrator_PhotoCaptureFailure(t *testing.T) {
	camera := &mockCamera{err: domain.ErrCaptureFailed}
	h := newHarness(application.RulesOnly{}, application.Collaborators{Camera: camera, Linker: mockLinker{}})

	p, _ := h.orch.Handle(context.Background(), "take photo")
	assert.Equal(t, domain.PayloadError, p.Type)
	assert.Empty(t, p.File)
	assert.Equal(t, 0, camera.shots)
	assert.Equal(t, 500, p.Status())
}

func TestOrchestrator_PhotoCaptured(t *testing.T) {
	camera := &mockCamera{}
	h := newHarness(application.RulesOnly{}, application.Collaborators{Camera: camera, Linker: mockLinker{}})

	p, _ := h.orch.Handle(context.Background(), "take photo")
	assert.Equal(t, domain.PayloadPhoto, p.Type)
	assert.Equal(t, "photo_1.jpg", p.File)
	assert.Equal(t, "http://mirror.local/captures/photo_1.jpg", p.URL)
}

func TestOrchestrator_PhotoWithoutCameraAsksDisplay(t *testing.T) {
	h := newHarness(application.RulesOnly{}, application.Collaborators{})

	p, _ := h.orch.Handle(context.Background(), "take photo")
	assert.Equal(t, domain.PayloadRequestPhoto, p.Type)
	_, ok := h.events.find(domain.EventRequestPhoto)
	assert.True(t, ok)
}

func TestOrchestrator_GalleryQR(t *testing.T) {
	h := newHarness(application.RulesOnly{}, application.Collaborators{Linker: mockLinker{}})

	p, _ := h.orch.Handle(context.Background(), "show qr code")
	assert.Equal(t, domain.PayloadQR, p.Type)
	assert.Equal(t, "cXI=", p.QRBase64)
	assert.Equal(t, "http://mirror.local/gallery", p.GalleryURL)
}

func TestOrchestrator_OutfitRequestsFrame(t *testing.T) {
	h := newHarness(application.RulesOnly{}, application.Collaborators{})

	p, _ := h.orch.Handle(context.Background(), "so just out fit")
	assert.Equal(t, domain.PayloadOutfitPending, p.Type)
	assert.Equal(t, 202, p.Status())

	data, ok := h.events.find(domain.EventRequestFrame)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"reason": "voice_request"}, data)
}

func TestOrchestrator_AlarmFromRules(t *testing.T) {
	h := newHarness(application.RulesOnly{}, application.Collaborators{})

	p, _ := h.orch.Handle(context.Background(), "set an alarm for 7am")
	assert.Equal(t, domain.PayloadAlarm, p.Type)
	assert.Equal(t, "Alarm set for 07:00.", p.Say)
	assert.Equal(t, "07:00", p.Alarm["time_24h"])
	_, ok := h.events.find(domain.EventAlarmSet)
	assert.True(t, ok)
}

func TestOrchestrator_AlarmWithoutTime(t *testing.T) {
	h := newHarness(application.RulesOnly{}, application.Collaborators{})

	p, _ := h.orch.Handle(context.Background(), "set an alarm")
	assert.Equal(t, "Could not understand the alarm time.", p.Say)
	_, ok := h.events.find(domain.EventAlarmSet)
	assert.False(t, ok)
}

func TestOrchestrator_ClassifierErrorIsInternalError(t *testing.T) {
	h := newHarness(&mockClassifier{err: domain.ErrClassifierUnavailable}, application.Collaborators{})

	p, handled := h.orch.Handle(context.Background(), "tell me something")
	require.True(t, handled)
	assert.Equal(t, domain.PayloadError, p.Type)
	assert.Equal(t, "Internal error.", p.Say)
	assert.Equal(t, 500, p.Status())
}

func TestOrchestrator_StructuredActionWinsOverRules(t *testing.T) {
	classifier := &mockClassifier{results: map[string]domain.IntentResult{
		"wake me at six thirty": domain.Structured(domain.StructuredAction{
			Kind:                domain.KindSetAlarm,
			Details:             map[string]any{"time": "6:30 am"},
			ConfirmationMessage: "Alarm set for 6:30 AM.",
		}),
	}}
	h := newHarness(classifier, application.Collaborators{})

	p, _ := h.orch.Handle(context.Background(), "wake me at six thirty")
	assert.Equal(t, domain.PayloadAlarm, p.Type)
	assert.Equal(t, "Alarm set for 6:30 AM.", p.Say)
	assert.Equal(t, "06:30", p.Alarm["time_24h"])
}

func TestOrchestrator_UnsupportedStructuredKindFallsBackToRules(t *testing.T) {
	classifier := &mockClassifier{results: map[string]domain.IntentResult{
		"pause": domain.Structured(domain.StructuredAction{Kind: domain.KindUnknown, ConfirmationMessage: "ok"}),
	}}
	h := newHarness(classifier, application.Collaborators{})

	p, _ := h.orch.Handle(context.Background(), "pause")
	assert.Equal(t, domain.PayloadMusic, p.Type)
}

func TestOrchestrator_UnknownUtterance(t *testing.T) {
	h := newHarness(application.RulesOnly{}, application.Collaborators{})

	p, _ := h.orch.Handle(context.Background(), "blorp")
	assert.Equal(t, domain.PayloadUnknown, p.Type)
	assert.Equal(t, "Sorry, I didn't understand.", p.Say)
}

func confirmingClassifier() *mockClassifier {
	return &mockClassifier{results: map[string]domain.IntentResult{
		"play something loud": domain.Structured(domain.StructuredAction{
			Kind:              domain.KindMusicPlay,
			Details:           map[string]any{"query": "rock anthems"},
			NeedsConfirmation: true,
			Question:          "Play rock anthems?",
		}),
	}}
}

func TestOrchestrator_ConfirmationDispatchesOnce(t *testing.T) {
	h := newHarness(confirmingClassifier(), application.Collaborators{})
	ctx := context.Background()

	p, _ := h.orch.Handle(ctx, "play something loud")
	assert.Equal(t, domain.PayloadAwaitingConfirmation, p.Type)
	assert.Equal(t, "Play rock anthems?", p.Say)
	require.NotNil(t, p.Action)
	_, played := h.events.find(domain.EventMusicPlay)
	assert.False(t, played)
	_, asked := h.events.find(domain.EventConfirmIntent)
	assert.True(t, asked)

	_, pending := h.orch.PendingConfirmation()
	assert.True(t, pending)

	p = h.orch.Confirm(ctx)
	assert.Equal(t, domain.PayloadMusic, p.Type)
	assert.Equal(t, "Playing rock anthems.", p.Say)

	p = h.orch.Confirm(ctx)
	assert.Equal(t, domain.PayloadUnknown, p.Type)
	assert.Equal(t, "There is nothing to confirm.", p.Say)

	plays := 0
	for _, e := range h.events.names() {
		if e == domain.EventMusicPlay {
			plays++
		}
	}
	assert.Equal(t, 1, plays)
}

func TestOrchestrator_ConfirmedAlarmWithoutTime(t *testing.T) {
	classifier := &mockClassifier{results: map[string]domain.IntentResult{
		"set my gym alarm": domain.Structured(domain.StructuredAction{
			Kind:              domain.KindSetAlarm,
			Details:           map[string]any{"label": "gym"},
			NeedsConfirmation: true,
			Question:          "Set the gym alarm?",
		}),
	}}
	h := newHarness(classifier, application.Collaborators{})
	ctx := context.Background()

	p, _ := h.orch.Handle(ctx, "set my gym alarm")
	require.Equal(t, domain.PayloadAwaitingConfirmation, p.Type)

	p = h.orch.Confirm(ctx)
	assert.Equal(t, domain.PayloadAlarm, p.Type)
	assert.Equal(t, "Could not understand the alarm time.", p.Say)
	assert.NotContains(t, p.Say, "<nil>")
	_, ok := h.events.find(domain.EventAlarmSet)
	assert.False(t, ok)
}

func TestOrchestrator_ConfirmedAlarmSpeaksTime(t *testing.T) {
	classifier := &mockClassifier{results: map[string]domain.IntentResult{
		"wake me at 7": domain.Structured(domain.StructuredAction{
			Kind:              domain.KindSetAlarm,
			Details:           map[string]any{"time": "7 am"},
			NeedsConfirmation: true,
			Question:          "Is that 7 AM?",
		}),
	}}
	h := newHarness(classifier, application.Collaborators{})
	ctx := context.Background()

	h.orch.Handle(ctx, "wake me at 7")
	p := h.orch.Confirm(ctx)
	assert.Equal(t, "Alarm set for 7 am.", p.Say)
	assert.Equal(t, "07:00", p.Alarm["time_24h"])
	_, ok := h.events.find(domain.EventAlarmSet)
	assert.True(t, ok)
}

func TestOrchestrator_DeclineClearsPending(t *testing.T) {
	h := newHarness(confirmingClassifier(), application.Collaborators{})
	ctx := context.Background()

	h.orch.Handle(ctx, "play something loud")

	p := h.orch.Decline(ctx)
	assert.Equal(t, domain.PayloadCancelled, p.Type)

	p = h.orch.Decline(ctx)
	assert.Equal(t, "There is nothing to cancel.", p.Say)

	_, played := h.events.find(domain.EventMusicPlay)
	assert.False(t, played)
}

func TestOrchestrator_HandleFrame(t *testing.T) {
	frame := domain.EncodeDataURL("image/jpeg", []byte{0xff, 0xd8, 0xff, 0xd9})

	t.Run("advice", func(t *testing.T) {
		advisor := &mockAdvisor{advice: application.OutfitAdvice{
			Description: "A blue shirt.",
			Suggestion:  "Add a light jacket.",
		}}
		h := newHarness(application.RulesOnly{}, application.Collaborators{Advisor: advisor})

		p, err := h.orch.HandleFrame(context.Background(), frame)
		require.NoError(t, err)
		assert.Equal(t, domain.PayloadOutfit, p.Type)
		assert.Equal(t, "Add a light jacket.", p.Say)
	})

	t.Run("invalid image", func(t *testing.T) {
		h := newHarness(application.RulesOnly{}, application.Collaborators{Advisor: &mockAdvisor{}})

		_, err := h.orch.HandleFrame(context.Background(), "data:image/jpeg;base64,!!!")
		assert.ErrorIs(t, err, domain.ErrInvalidImage)
		assert.Empty(t, h.speaker.said)
	})

	t.Run("advisor failure", func(t *testing.T) {
		h := newHarness(application.RulesOnly{}, application.Collaborators{Advisor: &mockAdvisor{err: errors.New("boom")}})

		p, err := h.orch.HandleFrame(context.Background(), frame)
		require.NoError(t, err)
		assert.Equal(t, domain.PayloadError, p.Type)
	})
}

func TestOrchestrator_HandleUploadedPhoto(t *testing.T) {
	store := &mockStore{}
	h := newHarness(application.RulesOnly{}, application.Collaborators{Photos: store, Linker: mockLinker{}})

	p, err := h.orch.HandleUploadedPhoto(context.Background(), domain.EncodeDataURL("image/png", []byte("png")))
	require.NoError(t, err)
	assert.Equal(t, domain.PayloadPhoto, p.Type)
	assert.Equal(t, "photo_1.png", p.File)
	assert.Equal(t, []byte("png"), store.saved["photo_1.png"])
}
