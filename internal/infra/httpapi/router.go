package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smart-mirror/internal/domain"
	"smart-mirror/internal/infra/metrics"
)

// Orchestrator runs voice turns.
type Orchestrator interface {
	Handle(ctx context.Context, text string) (domain.Payload, bool)
	Confirm(ctx context.Context) domain.Payload
	Decline(ctx context.Context) domain.Payload
	HandleFrame(ctx context.Context, dataURL string) (domain.Payload, error)
	HandleUploadedPhoto(ctx context.Context, dataURL string) (domain.Payload, error)
}

type Photos interface {
	List() ([]string, error)
	Latest() (string, bool, error)
	Path(name string) (string, error)
}

type Linker interface {
	GalleryURL() string
	GalleryQR() (string, error)
	PhotoURL(file string) string
}

type Weather interface {
	Lookup(ctx context.Context, lat, lon string) (domain.WeatherReport, error)
}

type Deps struct {
	Orchestrator Orchestrator
	Photos       Photos
	Linker       Linker
	Weather      Weather
	// Events serves the websocket bus at /ws.
	Events   http.Handler
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// RateLimit is requests per minute per client on /voice and /photo
	// uploads. Zero disables limiting.
	RateLimit int
	// TrustProxy keys the rate limit on proxy headers instead of RemoteAddr.
	TrustProxy bool
	Logger     *slog.Logger
}

func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(instrument(deps.Metrics))
	}

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.RateLimit > 0 {
			limiter := NewRateLimiter(deps.RateLimit, time.Minute)
			limiter.TrustProxy = deps.TrustProxy
			r.Use(limiter.Middleware)
		}
		r.Post("/voice/intent", handleIntent(deps))
		r.Post("/voice/frame", handleFrame(deps))
		r.Post("/voice/confirm", handleConfirm(deps))
		r.Post("/photo/from-ui", handlePhotoUpload(deps))
	})

	r.Get("/photo/last-photo", handleLastPhoto(deps))
	r.Get("/photo/all", handleAllPhotos(deps))
	r.Get("/captures/{file}", handleCapture(deps))
	r.Get("/gallery", handleGallery(deps))
	r.Get("/qr/gallery-qr", handleGalleryQR(deps))
	r.Get("/weather/current", handleWeather(deps))

	if deps.Events != nil {
		r.Handle("/ws", deps.Events)
	}
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			m.Latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
