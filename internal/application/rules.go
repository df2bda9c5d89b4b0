package application

import (
	"strings"

	"smart-mirror/internal/domain"
)

// Rule pairs a predicate over normalized text with the kind it selects.
type Rule struct {
	Name  string
	Kind  domain.Kind
	Match func(text string) bool
}

// DefaultRules is the offline tier. Order matters: the first match wins.
var DefaultRules = []Rule{
	{Name: "outfit", Kind: domain.KindOutfitSuggest, Match: outfitTriggered},
	{Name: "qr", Kind: domain.KindQR, Match: func(t string) bool {
		return hasWord(t, "qr") || containsAny(t, "qr code", "gallery", "download")
	}},
	{Name: "photo", Kind: domain.KindPhoto, Match: func(t string) bool {
		return containsAny(t, "take photo", "capture photo", "snap a photo", "photo")
	}},
	{Name: "alarm", Kind: domain.KindSetAlarm, Match: func(t string) bool {
		return hasWord(t, "alarm") || containsAny(t, "wake me")
	}},
	{Name: "weather", Kind: domain.KindWeather, Match: func(t string) bool {
		return containsAny(t, "weather", "temperature")
	}},
	{Name: "time", Kind: domain.KindTime, Match: func(t string) bool {
		return hasWord(t, "time")
	}},
	{Name: "music stop", Kind: domain.KindMusicStop, Match: func(t string) bool {
		return containsAny(t, "stop music") || (hasWord(t, "stop") && containsAny(t, "music", "song"))
	}},
	{Name: "music pause", Kind: domain.KindMusicPause, Match: func(t string) bool {
		return hasWord(t, "pause")
	}},
	{Name: "music resume", Kind: domain.KindMusicResume, Match: func(t string) bool {
		return hasWord(t, "resume", "continue", "unpause") || containsAny(t, "play again")
	}},
	{Name: "music next", Kind: domain.KindMusicNext, Match: func(t string) bool {
		return hasWord(t, "next", "skip")
	}},
	{Name: "music previous", Kind: domain.KindMusicPrev, Match: func(t string) bool {
		return hasWord(t, "previous", "back")
	}},
	{Name: "music play", Kind: domain.KindMusicPlay, Match: func(t string) bool {
		return strings.HasPrefix(t, "play") || containsAny(t, "song", "music")
	}},
}

// MatchRule returns the kind of the first matching rule, or KindUnknown.
func MatchRule(rules []Rule, text string) domain.Kind {
	for _, r := range rules {
		if r.Match(text) {
			return r.Kind
		}
	}
	return domain.KindUnknown
}

var outfitKeywords = []string{
	"suggest outfit", "suggest", "sujjest", "so just", "so jest",
	"rate my outfit", "how do i look", "what am i wearing",
	"analyze outfit", "analyze my outfit", "outfit", "rate outfit",
}

var stripPunct = strings.NewReplacer(".", "", ",", "", "?", "")

// outfitTriggered tolerates common mis-transcriptions of "suggest outfit"
// such as "so just out fit" or "sug outfits".
func outfitTriggered(text string) bool {
	cleaned := stripPunct.Replace(text)
	if containsAny(cleaned, outfitKeywords...) {
		return true
	}
	words := strings.Fields(cleaned)
	if len(words) < 2 {
		return false
	}
	switch words[0] {
	case "so", "su", "sug", "suggest":
		return strings.Contains(words[len(words)-1], "out")
	}
	return false
}

var musicCommandWords = map[string]bool{
	"play": true, "music": true, "song": true, "songs": true,
}

// MusicQuery derives a search query from a play command.
func MusicQuery(text string) string {
	var kept []string
	for _, w := range strings.Fields(stripPunct.Replace(text)) {
		if !musicCommandWords[w] {
			kept = append(kept, w)
		}
	}
	q := strings.Join(kept, " ")
	if q == "" {
		return "popular songs"
	}
	return q
}

func containsAny(text string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func hasWord(text string, words ...string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	}) {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}
