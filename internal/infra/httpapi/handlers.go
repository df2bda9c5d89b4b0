package httpapi

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"smart-mirror/internal/domain"
)

const maxBodySize = 16 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writePayload(w http.ResponseWriter, p domain.Payload) {
	writeJSON(w, p.Status(), p)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleIntent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		if err := decode(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}

		payload, handled := deps.Orchestrator.Handle(r.Context(), req.Text)
		if !handled {
			writeJSON(w, http.StatusOK, map[string]bool{"ignored": true})
			return
		}
		deps.Metrics.ObserveTurn(string(payload.Type))
		writePayload(w, payload)
	}
}

func handleConfirm(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Confirm *bool `json:"confirm"`
		}
		if err := decode(w, r, &req); err != nil || req.Confirm == nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "confirm must be true or false"})
			return
		}

		var payload domain.Payload
		if *req.Confirm {
			payload = deps.Orchestrator.Confirm(r.Context())
		} else {
			payload = deps.Orchestrator.Decline(r.Context())
		}
		deps.Metrics.ObserveTurn(string(payload.Type))
		writePayload(w, payload)
	}
}

type imageRequest struct {
	Image string `json:"image"`
}

func handleFrame(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req imageRequest
		if err := decode(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}

		payload, err := deps.Orchestrator.HandleFrame(r.Context(), req.Image)
		if err != nil {
			writeImageError(w, err)
			return
		}
		deps.Metrics.ObserveTurn(string(payload.Type))
		writePayload(w, payload)
	}
}

func handlePhotoUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req imageRequest
		if err := decode(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		if req.Image == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "No image"})
			return
		}

		payload, err := deps.Orchestrator.HandleUploadedPhoto(r.Context(), req.Image)
		if err != nil {
			writeImageError(w, err)
			return
		}
		writePayload(w, payload)
	}
}

func writeImageError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInvalidImage) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}

func handleLastPhoto(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		name, ok, err := deps.Photos.Latest()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return
		}
		var file *string
		if ok {
			file = &name
		}
		writeJSON(w, http.StatusOK, map[string]*string{"file": file})
	}
}

func handleAllPhotos(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		names, err := deps.Photos.List()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, map[string][]string{"photos": names})
	}
}

func handleCapture(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := deps.Photos.Path(chi.URLParam(r, "file"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	}
}

var galleryTemplate = template.Must(template.New("gallery").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Smart Mirror Gallery</title>
  </head>
  <body style="font-family: Arial, sans-serif; padding: 20px; background: #111; color: #fff;">
    <h2>Smart Mirror Gallery</h2>
    {{range .}}
    <div style="margin-bottom: 30px;">
      <img src="{{.URL}}" style="width: 95%; border-radius: 12px; margin-bottom: 10px;">
      <div>{{.Name}}</div>
    </div>
    {{else}}
    <p>No photos found.</p>
    {{end}}
  </body>
</html>
`))

type galleryItem struct {
	Name string
	URL  string
}

func handleGallery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		names, err := deps.Photos.List()
		if err != nil {
			http.Error(w, "failed to list photos", http.StatusInternalServerError)
			return
		}

		items := make([]galleryItem, 0, len(names))
		for i := len(names) - 1; i >= 0; i-- {
			items = append(items, galleryItem{Name: names[i], URL: "/captures/" + names[i]})
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := galleryTemplate.Execute(w, items); err != nil {
			deps.Logger.Error("rendering gallery", "error", err)
		}
	}
}

func handleGalleryQR(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		qr, err := deps.Linker.GalleryQR()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"qr_base64":   qr,
			"gallery_url": deps.Linker.GalleryURL(),
		})
	}
}

func handleWeather(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Weather == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "weather not configured"})
			return
		}

		q := r.URL.Query()
		report, err := deps.Weather.Lookup(r.Context(), q.Get("lat"), q.Get("lon"))
		if err != nil {
			deps.Logger.Error("fetching weather", "error", err)
			writeJSON(w, http.StatusBadGateway, domain.WeatherReport{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
