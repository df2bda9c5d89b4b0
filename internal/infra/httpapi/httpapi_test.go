package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"smart-mirror/internal/domain"
	"smart-mirror/internal/infra/metrics"
	"smart-mirror/internal/infra/photos"
)

type fakeOrchestrator struct {
	payload   domain.Payload
	ignore    bool
	frameErr  error
	lastText  string
	confirmed int
	declined  int
}

func (f *fakeOrchestrator) Handle(_ context.Context, text string) (domain.Payload, bool) {
	f.lastText = text
	return f.payload, !f.ignore
}

func (f *fakeOrchestrator) Confirm(context.Context) domain.Payload {
	f.confirmed++
	return domain.Payload{Type: domain.PayloadAlarm, Say: "Alarm set for 07:00."}
}

func (f *fakeOrchestrator) Decline(context.Context) domain.Payload {
	f.declined++
	return domain.Payload{Type: domain.PayloadCancelled, Say: "Okay, cancelled."}
}

func (f *fakeOrchestrator) HandleFrame(_ context.Context, dataURL string) (domain.Payload, error) {
	if _, _, err := domain.DecodeDataURL(dataURL); err != nil {
		return domain.Payload{}, err
	}
	if f.frameErr != nil {
		return domain.Payload{}, f.frameErr
	}
	return domain.Payload{Type: domain.PayloadOutfit, Say: "Looking sharp."}, nil
}

func (f *fakeOrchestrator) HandleUploadedPhoto(_ context.Context, dataURL string) (domain.Payload, error) {
	if _, _, err := domain.DecodeDataURL(dataURL); err != nil {
		return domain.Payload{}, err
	}
	return domain.Payload{Type: domain.PayloadPhoto, Say: "Photo captured.", File: "photo_1.jpg"}, nil
}

type fakeLinker struct{}

func (fakeLinker) GalleryURL() string          { return "http://mirror.local:5001/gallery" }
func (fakeLinker) GalleryQR() (string, error)  { return "data:image/png;base64,AAAA", nil }
func (fakeLinker) PhotoURL(file string) string { return "http://mirror.local:5001/captures/" + file }

type fakeWeather struct {
	lat, lon string
	err      error
}

func (f *fakeWeather) Lookup(_ context.Context, lat, lon string) (domain.WeatherReport, error) {
	f.lat, f.lon = lat, lon
	if f.err != nil {
		return domain.WeatherReport{}, f.err
	}
	temp := 21.5
	return domain.WeatherReport{City: "Pune", Temp: &temp}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	orch    *fakeOrchestrator
	weather *fakeWeather
	store   *photos.Store
	handler http.Handler
	reg     *prometheus.Registry
}

func newHarness(t *testing.T, rateLimit int) *harness {
	t.Helper()
	store, err := photos.NewStore(t.TempDir(), time.Hour, discardLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	reg := prometheus.NewRegistry()
	h := &harness{
		orch:    &fakeOrchestrator{payload: domain.Payload{Type: domain.PayloadChat, Say: "Hello!"}},
		weather: &fakeWeather{},
		store:   store,
		reg:     reg,
	}
	h.handler = NewRouter(Deps{
		Orchestrator: h.orch,
		Photos:       store,
		Linker:       fakeLinker{},
		Weather:      h.weather,
		Metrics:      metrics.New(reg),
		Gatherer:     reg,
		RateLimit:    rateLimit,
		Logger:       discardLogger(),
	})
	return h
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestIntent_Chat(t *testing.T) {
	h := newHarness(t, 0)

	rec := h.do("POST", "/voice/intent", `{"text":"hello mirror"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["type"] != "CHAT" || body["say"] != "Hello!" {
		t.Errorf("body: %v", body)
	}
	if h.orch.lastText != "hello mirror" {
		t.Errorf("text: got %q", h.orch.lastText)
	}
}

func TestIntent_StatusFollowsPayload(t *testing.T) {
	h := newHarness(t, 0)

	h.orch.payload = domain.Payload{Type: domain.PayloadAwaitingConfirmation, Say: "AM or PM?"}
	if rec := h.do("POST", "/voice/intent", `{"text":"alarm at 7"}`); rec.Code != http.StatusAccepted {
		t.Errorf("awaiting confirmation: got %d", rec.Code)
	}

	h.orch.payload = domain.ErrorPayload(errors.New("boom"))
	rec := h.do("POST", "/voice/intent", `{"text":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("error: got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["say"] != "Internal error." {
		t.Errorf("error body: %v", body)
	}
}

func TestIntent_Ignored(t *testing.T) {
	h := newHarness(t, 0)
	h.orch.ignore = true

	rec := h.do("POST", "/voice/intent", `{"text":"uh"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["ignored"] != true {
		t.Errorf("body: %v", body)
	}
}

func TestIntent_BadJSON(t *testing.T) {
	h := newHarness(t, 0)

	if rec := h.do("POST", "/voice/intent", `{"text":`); rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", rec.Code)
	}
}

func TestConfirm(t *testing.T) {
	h := newHarness(t, 0)

	if rec := h.do("POST", "/voice/confirm", `{"confirm":true}`); rec.Code != http.StatusOK {
		t.Errorf("confirm: got %d", rec.Code)
	}
	if rec := h.do("POST", "/voice/confirm", `{"confirm":false}`); rec.Code != http.StatusOK {
		t.Errorf("decline: got %d", rec.Code)
	}
	if rec := h.do("POST", "/voice/confirm", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing field: got %d", rec.Code)
	}
	if h.orch.confirmed != 1 || h.orch.declined != 1 {
		t.Errorf("confirmed=%d declined=%d", h.orch.confirmed, h.orch.declined)
	}
}

func TestFrame(t *testing.T) {
	h := newHarness(t, 0)

	rec := h.do("POST", "/voice/frame", `{"image":"data:image/jpeg;base64,/9j/"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body)
	}
	if body := decodeBody(t, rec); body["type"] != "OUTFIT" {
		t.Errorf("body: %v", body)
	}

	if rec := h.do("POST", "/voice/frame", `{"image":"not base64!"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid image: got %d", rec.Code)
	}
}

func TestPhotoUpload(t *testing.T) {
	h := newHarness(t, 0)

	if rec := h.do("POST", "/photo/from-ui", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing image: got %d", rec.Code)
	}

	rec := h.do("POST", "/photo/from-ui", `{"image":"data:image/jpeg;base64,/9j/"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["type"] != "PHOTO" || body["file"] != "photo_1.jpg" {
		t.Errorf("body: %v", body)
	}
}

func TestPhotos(t *testing.T) {
	h := newHarness(t, 0)

	rec := h.do("GET", "/photo/last-photo", "")
	if body := decodeBody(t, rec); body["file"] != nil {
		t.Errorf("empty store: %v", body)
	}
	rec = h.do("GET", "/photo/all", "")
	if strings.TrimSpace(rec.Body.String()) != `{"photos":[]}` {
		t.Errorf("empty list: %s", rec.Body)
	}

	saved, err := h.store.Save("photo", ".jpg", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec = h.do("GET", "/photo/last-photo", "")
	if body := decodeBody(t, rec); body["file"] != saved.Filename {
		t.Errorf("latest: %v", body)
	}

	rec = h.do("GET", "/captures/"+saved.Filename, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "jpeg-bytes" {
		t.Errorf("capture: %d %q", rec.Code, rec.Body)
	}

	rec = h.do("GET", "/gallery", "")
	if !strings.Contains(rec.Body.String(), `src="/captures/`+saved.Filename+`"`) {
		t.Errorf("gallery missing photo: %s", rec.Body)
	}
}

func TestCapture_NotFound(t *testing.T) {
	h := newHarness(t, 0)

	if rec := h.do("GET", "/captures/missing.jpg", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing: got %d", rec.Code)
	}
	if rec := h.do("GET", "/captures/..%2Fsecret.jpg", ""); rec.Code != http.StatusNotFound {
		t.Errorf("traversal: got %d", rec.Code)
	}
}

func TestGalleryQR(t *testing.T) {
	h := newHarness(t, 0)

	body := decodeBody(t, h.do("GET", "/qr/gallery-qr", ""))
	if body["gallery_url"] != "http://mirror.local:5001/gallery" || body["qr_base64"] != "data:image/png;base64,AAAA" {
		t.Errorf("body: %v", body)
	}
}

func TestWeather(t *testing.T) {
	h := newHarness(t, 0)

	rec := h.do("GET", "/weather/current?lat=18.5&lon=73.8", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if h.weather.lat != "18.5" || h.weather.lon != "73.8" {
		t.Errorf("coords: %s,%s", h.weather.lat, h.weather.lon)
	}
	if body := decodeBody(t, rec); body["city"] != "Pune" {
		t.Errorf("body: %v", body)
	}

	h.weather.err = errors.New("timeout")
	if rec := h.do("GET", "/weather/current", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("failure: got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, 0)

	if rec := h.do("GET", "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health: got %d", rec.Code)
	}
	h.do("POST", "/voice/intent", `{"text":"hello"}`)

	rec := h.do("GET", "/metrics", "")
	for _, want := range []string{`mirror_turns_total{type="CHAT"} 1`, `route="/voice/intent"`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestRateLimitOnVoiceRoutes(t *testing.T) {
	h := newHarness(t, 2)

	for i := 0; i < 2; i++ {
		if rec := h.do("POST", "/voice/intent", `{"text":"hi"}`); rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, rec.Code)
		}
	}
	if rec := h.do("POST", "/voice/intent", `{"text":"hi"}`); rec.Code != http.StatusTooManyRequests {
		t.Errorf("over limit: got %d", rec.Code)
	}
	if rec := h.do("GET", "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health limited: got %d", rec.Code)
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Unix(0, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || rl.Allow("a") {
		t.Fatal("expected one request per window")
	}
	if !rl.Allow("b") {
		t.Error("clients must not share buckets")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("a") {
		t.Error("expected reset after window")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:4321"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientIP(r, false); got != "10.0.0.5" {
		t.Errorf("untrusted: got %s, want RemoteAddr host", got)
	}
	if got := clientIP(r, true); got != "203.0.113.9" {
		t.Errorf("trusted proxy: got %s", got)
	}
}

func TestRateLimit_IgnoresSpoofedForwardedFor(t *testing.T) {
	h := newHarness(t, 1)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest("POST", "/voice/intent", strings.NewReader(`{"text":"hi"}`))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: got %d, want %d", i, rec.Code, want)
		}
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	now := time.Unix(0, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		rl.Allow(fmt.Sprintf("10.0.0.%d", i))
	}
	if n := rl.Len(); n != 50 {
		t.Fatalf("tracked: got %d, want 50", n)
	}

	now = now.Add(2 * time.Minute)
	rl.Allow("10.0.1.1")
	if n := rl.Len(); n != 1 {
		t.Errorf("tracked after idle window: got %d, want 1", n)
	}
}

func TestServer_StartStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewRouter(Deps{}), discardLogger())
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/health", srv.Addr()))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: got %d", resp.StatusCode)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestServer_BindError(t *testing.T) {
	first := NewServer("127.0.0.1:0", http.NotFoundHandler(), discardLogger())
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	second := NewServer(first.Addr(), http.NotFoundHandler(), discardLogger())
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected bind error")
	}
}
