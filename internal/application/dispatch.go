package application

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"

	"smart-mirror/internal/domain"
)

type musicControl struct {
	event domain.Event
	say   string
}

var musicControls = map[domain.Kind]musicControl{
	domain.KindMusicPause:  {domain.EventMusicPause, "Paused the music."},
	domain.KindMusicResume: {domain.EventMusicResume, "Resuming the music."},
	domain.KindMusicNext:   {domain.EventMusicNext, "Playing next song."},
	domain.KindMusicPrev:   {domain.EventMusicPrev, "Going to previous track."},
	domain.KindMusicStop:   {domain.EventMusicStop, "Stopping the music."},
}

func (o *Orchestrator) dispatch(ctx context.Context, text string, action domain.StructuredAction) domain.Payload {
	o.logger.Info("dispatching", "kind", action.Kind)

	switch action.Kind {
	case domain.KindSetAlarm:
		return o.setAlarm(ctx, text, action)

	case domain.KindOutfitSuggest:
		o.emit(ctx, domain.EventRequestFrame, map[string]string{"reason": "voice_request"})
		return domain.Payload{Type: domain.PayloadOutfitPending, Say: "Hold on, capturing your outfit..."}

	case domain.KindPhoto:
		return o.takePhoto(ctx)

	case domain.KindQR:
		return o.galleryQR()

	case domain.KindWeather:
		return o.currentWeather(ctx)

	case domain.KindTime:
		return domain.Payload{Type: domain.PayloadTime, Say: "It is " + o.clock.Now().Format("03:04 PM") + "."}

	case domain.KindMusicPlay:
		query := action.Detail("query")
		if query == "" {
			query = MusicQuery(text)
		}
		o.emit(ctx, domain.EventMusicPlay, map[string]string{"query": query})
		return domain.Payload{Type: domain.PayloadMusic, Say: "Playing " + query + ".", Query: query}
	}

	if ctl, ok := musicControls[action.Kind]; ok {
		o.emit(ctx, ctl.event, map[string]string{})
		return domain.Payload{Type: domain.PayloadMusic, Say: ctl.say}
	}

	return unknownPayload()
}

func (o *Orchestrator) setAlarm(ctx context.Context, text string, action domain.StructuredAction) domain.Payload {
	details := maps.Clone(action.Details)
	if details == nil {
		details = map[string]any{}
	}

	source := action.Detail("time")
	if source == "" {
		source = text
	}
	if hhmm, ok := ParseAlarmTime(source, o.clock.Now()); ok {
		details["time_24h"] = hhmm
		if action.Detail("time") == "" {
			details["time"] = hhmm
		}
	} else if action.Detail("time") == "" {
		return domain.Payload{Type: domain.PayloadAlarm, Say: "Could not understand the alarm time."}
	}

	o.emit(ctx, domain.EventAlarmSet, details)

	say := action.ConfirmationMessage
	if say == "" {
		say = fmt.Sprintf("Alarm set for %v.", details["time"])
	}
	return domain.Payload{Type: domain.PayloadAlarm, Say: say, Alarm: details}
}

func (o *Orchestrator) takePhoto(ctx context.Context) domain.Payload {
	if o.camera == nil {
		o.emit(ctx, domain.EventRequestPhoto, map[string]string{})
		return domain.Payload{Type: domain.PayloadRequestPhoto, Say: "Capturing your photo."}
	}

	photo, err := o.camera.Capture(ctx, "photo")
	if err != nil {
		o.logger.Error("capturing photo", "error", err)
		p := domain.ErrorPayload(err)
		switch {
		case errors.Is(err, domain.ErrCameraUnavailable):
			p.Say = "Sorry, the camera is not available."
		case errors.Is(err, domain.ErrCaptureFailed):
			p.Say = "Sorry, I couldn't capture a photo."
		}
		return p
	}

	return o.photoPayload(photo)
}

func (o *Orchestrator) photoPayload(photo domain.CapturedPhoto) domain.Payload {
	p := domain.Payload{Type: domain.PayloadPhoto, Say: "Photo captured.", File: photo.Filename}
	if o.linker != nil {
		p.URL = o.linker.PhotoURL(photo.Filename)
	}
	return p
}

func (o *Orchestrator) galleryQR() domain.Payload {
	if o.linker == nil {
		return domain.ErrorPayload(errors.New("no gallery linker configured"))
	}

	qr, err := o.linker.GalleryQR()
	if err != nil {
		o.logger.Error("generating gallery qr", "error", err)
		return domain.ErrorPayload(fmt.Errorf("generating qr: %w", err))
	}

	return domain.Payload{
		Type:       domain.PayloadQR,
		Say:        "Scan the code to open your photo gallery.",
		QRBase64:   qr,
		GalleryURL: o.linker.GalleryURL(),
	}
}

func (o *Orchestrator) currentWeather(ctx context.Context) domain.Payload {
	const unavailable = "Sorry, I couldn't get the weather right now."

	if o.weather == nil {
		return domain.Payload{Type: domain.PayloadWeather, Say: unavailable, Error: "weather not configured"}
	}

	report, err := o.weather.Current(ctx)
	if err != nil {
		o.logger.Error("fetching weather", "error", err)
		return domain.Payload{Type: domain.PayloadWeather, Say: unavailable, Error: err.Error()}
	}
	if report.Error != "" || report.Temp == nil {
		return domain.Payload{Type: domain.PayloadWeather, Say: unavailable, Error: report.Error, Weather: &report}
	}

	return domain.Payload{
		Type:    domain.PayloadWeather,
		Say:     fmt.Sprintf("The temperature is %s°C with %s.", FormatTemp(*report.Temp), report.Description),
		Weather: &report,
	}
}

// FormatTemp renders whole degrees without a decimal point.
func FormatTemp(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}
