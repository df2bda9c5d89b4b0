package domain

type Event string

const (
	EventWakeWord        Event = "wake_word"
	EventVoiceText       Event = "voice_text"
	EventRequestFrame    Event = "request_frame_for_outfit"
	EventConfirmIntent   Event = "confirm_intent"
	EventConfirmResponse Event = "confirm_response"
	EventAlarmSet        Event = "alarm_set"
	EventMusicPlay       Event = "play_song"
	EventMusicPause      Event = "music_pause"
	EventMusicResume     Event = "music_resume"
	EventMusicNext       Event = "music_next"
	EventMusicPrev       Event = "music_prev"
	EventMusicStop       Event = "music_stop"
	EventRequestPhoto    Event = "request_photo"
	EventVoiceResponse   Event = "voice_response"
	EventVoiceEnd        Event = "voice_end"
)

// Envelope is the wire shape of an event on every bus.
type Envelope struct {
	Event Event `json:"event"`
	Data  any   `json:"data,omitempty"`
}

type TurnEnd struct {
	TurnID  string `json:"turn_id"`
	Ignored bool   `json:"ignored,omitempty"`
}
