package application

import "strings"

var noiseWords = map[string]bool{
	"ah": true, "haan": true, "hmm": true, "huh": true, "yo": true,
	"ok": true, "okay": true, "uh": true, "um": true,
}

func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// IsNoise reports whether normalized text should be dropped without a turn.
func IsNoise(text string) bool {
	return text == "" || noiseWords[text]
}
