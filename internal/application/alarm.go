package application

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	amPattern     = regexp.MustCompile(`(?:\d|\b)a\.?\s?m\b|\bmorning\b`)
	pmPattern     = regexp.MustCompile(`(?:\d|\b)p\.?\s?m\b|\bevening\b|\bnight\b|\btonight\b|\bafternoon\b`)
	digitsPattern = regexp.MustCompile(`\d+`)
)

// ParseAlarmTime extracts an HH:MM (24h) alarm time from spoken text.
// Compressed forms are accepted ("450" is 4:50, "1126" is 11:26). Without an
// am/pm marker a 12-hour reading picks the next occurrence after now; hours
// above 12 are taken as 24-hour time.
func ParseAlarmTime(text string, now time.Time) (string, bool) {
	period := ""
	switch {
	case amPattern.MatchString(text):
		period = "am"
	case pmPattern.MatchString(text):
		period = "pm"
	}

	nums := digitsPattern.FindAllString(text, -1)
	if len(nums) == 0 {
		return "", false
	}

	raw := nums[0]
	var hour, minute int
	switch len(raw) {
	case 3:
		hour, _ = strconv.Atoi(raw[:1])
		minute, _ = strconv.Atoi(raw[1:])
	case 4:
		hour, _ = strconv.Atoi(raw[:2])
		minute, _ = strconv.Atoi(raw[2:])
	default:
		hour, _ = strconv.Atoi(raw)
		if len(nums) > 1 {
			minute, _ = strconv.Atoi(nums[1])
		}
	}

	minute %= 60

	switch {
	case period == "pm" && hour != 12:
		hour += 12
	case period == "am" && hour == 12:
		hour = 0
	case period == "" && hour <= 12 && hour <= now.Hour():
		hour = (hour + 12) % 24
	}

	hour = max(0, min(hour, 23))
	minute = max(0, min(minute, 59))

	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
