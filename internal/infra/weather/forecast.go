package weather

import (
	"sort"
	"time"

	"smart-mirror/internal/domain"
)

// DailyForecast folds 3-hour forecast items into per-day summaries for the
// days after today in the location's timezone (offset in seconds).
func DailyForecast(items []forecastItem, tzOffset int, now time.Time, days int) []domain.DailyForecast {
	loc := time.FixedZone("local", tzOffset)
	today := now.In(loc).Format(time.DateOnly)

	type bucket struct {
		temps []float64
		descs []string
		icons []string
	}
	byDay := make(map[string]*bucket)

	for _, it := range items {
		day := time.Unix(it.Dt, 0).In(loc).Format(time.DateOnly)
		if day <= today {
			continue
		}
		b, ok := byDay[day]
		if !ok {
			b = &bucket{}
			byDay[day] = b
		}
		b.temps = append(b.temps, it.Main.Temp)
		var cond condition
		if len(it.Weather) > 0 {
			cond = it.Weather[0]
		}
		b.descs = append(b.descs, cond.Description)
		b.icons = append(b.icons, cond.Icon)
	}

	dates := make([]string, 0, len(byDay))
	for d := range byDay {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > days {
		dates = dates[:days]
	}

	out := make([]domain.DailyForecast, 0, len(dates))
	for _, d := range dates {
		b := byDay[d]
		sum, lo, hi := 0.0, b.temps[0], b.temps[0]
		for _, t := range b.temps {
			sum += t
			lo = min(lo, t)
			hi = max(hi, t)
		}
		out = append(out, domain.DailyForecast{
			Date:    d,
			Temp:    sum / float64(len(b.temps)),
			TempMin: lo,
			TempMax: hi,
			Weather: dominant(b.descs),
			Icon:    dominant(b.icons),
		})
	}
	return out
}

// dominant returns the most frequent value. On a tie, the value that
// reached the count first wins.
func dominant(values []string) string {
	counts := make(map[string]int, len(values))
	best, bestN := "", 0
	for _, v := range values {
		counts[v]++
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}
