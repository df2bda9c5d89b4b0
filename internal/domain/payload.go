package domain

import "net/http"

type PayloadType string

const (
	PayloadChat                 PayloadType = "CHAT"
	PayloadError                PayloadType = "ERROR"
	PayloadAwaitingConfirmation PayloadType = "AWAITING_CONFIRMATION"
	PayloadCancelled            PayloadType = "CANCELLED"
	PayloadOutfitPending        PayloadType = "OUTFIT_PENDING"
	PayloadOutfit               PayloadType = "OUTFIT"
	PayloadPhoto                PayloadType = "PHOTO"
	PayloadRequestPhoto         PayloadType = "REQUEST_PHOTO"
	PayloadQR                   PayloadType = "QR"
	PayloadWeather              PayloadType = "WEATHER"
	PayloadTime                 PayloadType = "TIME"
	PayloadMusic                PayloadType = "MUSIC"
	PayloadAlarm                PayloadType = "ALARM"
	PayloadUnknown              PayloadType = "UNKNOWN"
)

// Payload is the single response of a turn: returned over HTTP, spoken and
// broadcast as voice_response.
type Payload struct {
	Type  PayloadType `json:"type"`
	Say   string      `json:"say"`
	Error string      `json:"error,omitempty"`

	Action      *StructuredAction `json:"action,omitempty"`
	Question    string            `json:"question,omitempty"`
	Query       string            `json:"query,omitempty"`
	Alarm       map[string]any    `json:"alarm,omitempty"`
	Weather     *WeatherReport    `json:"weather,omitempty"`
	File        string            `json:"file,omitempty"`
	URL         string            `json:"url,omitempty"`
	QRBase64    string            `json:"qr_base64,omitempty"`
	GalleryURL  string            `json:"gallery_url,omitempty"`
	Description string            `json:"description,omitempty"`
	Suggestion  string            `json:"suggestion,omitempty"`
}

// Status is the HTTP status the payload is served with.
func (p Payload) Status() int {
	switch p.Type {
	case PayloadAwaitingConfirmation, PayloadOutfitPending:
		return http.StatusAccepted
	case PayloadError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func ErrorPayload(err error) Payload {
	p := Payload{Type: PayloadError, Say: "Internal error."}
	if err != nil {
		p.Error = err.Error()
	}
	return p
}
