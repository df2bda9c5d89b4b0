package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"smart-mirror/internal/domain"
)

const (
	defaultAPIURL = "https://api.openweathermap.org"
	defaultIPURL  = "https://ipapi.co/json/"

	fallbackCity     = "Delhi"
	fallbackTimezone = 19800
	forecastDays     = 4
	lookupTimeout    = 5 * time.Second
)

const missingKey = "Missing WEATHER_API_KEY"

type Config struct {
	APIKey  string
	Lat     string
	Lon     string
	City    string
	Timeout time.Duration
	// APIURL and IPURL override the OpenWeather and ipapi endpoints.
	APIURL string
	IPURL  string
	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration
}

// Client reads current conditions and a short forecast from OpenWeather.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
	logger  *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.IPURL == "" {
		cfg.IPURL = defaultIPURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weather",
		// A half-open lookup makes up to two guarded calls: the IP or
		// reverse-geocode lookup and the combined current+forecast fetch.
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{cfg: cfg, http: httpClient, breaker: breaker, now: time.Now, logger: logger}
}

// Current uses the configured coordinates or city.
func (c *Client) Current(ctx context.Context) (domain.WeatherReport, error) {
	return c.Lookup(ctx, c.cfg.Lat, c.cfg.Lon)
}

// Lookup queries by coordinates when both are given, otherwise by the
// configured city or the city of this host's public IP.
func (c *Client) Lookup(ctx context.Context, lat, lon string) (domain.WeatherReport, error) {
	if c.cfg.APIKey == "" {
		return domain.WeatherReport{Error: missingKey}, nil
	}
	if lat != "" && lon != "" {
		return c.byCoords(ctx, lat, lon)
	}

	city := c.cfg.City
	if city == "" {
		city = c.cityFromIP(ctx)
	}
	return c.byCity(ctx, city)
}

type currentResponse struct {
	Name     string `json:"name"`
	Timezone *int   `json:"timezone"`
	Main     struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  *float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Weather []condition `json:"weather"`
}

type condition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type forecastResponse struct {
	City struct {
		Timezone *int `json:"timezone"`
	} `json:"city"`
	List []forecastItem `json:"list"`
}

type forecastItem struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []condition `json:"weather"`
}

func (c *Client) byCoords(ctx context.Context, lat, lon string) (domain.WeatherReport, error) {
	q := url.Values{"lat": {lat}, "lon": {lon}}

	report, err := c.fetch(ctx, q)
	if err != nil {
		return domain.WeatherReport{}, err
	}
	report.City = c.reverseGeocode(ctx, lat, lon)
	return report, nil
}

func (c *Client) byCity(ctx context.Context, city string) (domain.WeatherReport, error) {
	return c.fetch(ctx, url.Values{"q": {city}})
}

func (c *Client) fetch(ctx context.Context, q url.Values) (domain.WeatherReport, error) {
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", "metric")

	var current currentResponse
	var forecast forecastResponse

	err := c.guarded(func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := c.get(gctx, c.cfg.APIURL+"/data/2.5/weather?"+q.Encode(), c.cfg.Timeout, &current); err != nil {
				return fmt.Errorf("fetching current weather: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			if err := c.get(gctx, c.cfg.APIURL+"/data/2.5/forecast?"+q.Encode(), c.cfg.Timeout, &forecast); err != nil {
				return fmt.Errorf("fetching forecast: %w", err)
			}
			return nil
		})
		return g.Wait()
	})
	if err != nil {
		return domain.WeatherReport{}, err
	}

	tz := fallbackTimezone
	switch {
	case forecast.City.Timezone != nil:
		tz = *forecast.City.Timezone
	case current.Timezone != nil:
		tz = *current.Timezone
	}

	report := domain.WeatherReport{
		City:      current.Name,
		Temp:      current.Main.Temp,
		FeelsLike: current.Main.FeelsLike,
		Humidity:  current.Main.Humidity,
		Wind:      current.Wind.Speed,
		Forecast:  DailyForecast(forecast.List, tz, c.now(), forecastDays),
	}
	if len(current.Weather) > 0 {
		report.Description = current.Weather[0].Description
		report.Icon = current.Weather[0].Icon
	}
	return report, nil
}

func (c *Client) reverseGeocode(ctx context.Context, lat, lon string) string {
	q := url.Values{"lat": {lat}, "lon": {lon}, "limit": {"1"}, "appid": {c.cfg.APIKey}}

	var places []struct {
		Name       string            `json:"name"`
		LocalNames map[string]string `json:"local_names"`
		State      string            `json:"state"`
	}
	err := c.guarded(func() error {
		return c.get(ctx, c.cfg.APIURL+"/geo/1.0/reverse?"+q.Encode(), lookupTimeout, &places)
	})
	if err != nil {
		c.logger.Warn("reverse geocoding", "error", err)
		return "Unknown"
	}
	if len(places) == 0 {
		return "Unknown"
	}

	p := places[0]
	for _, name := range []string{p.Name, p.LocalNames["en"], p.State} {
		if name != "" {
			return name
		}
	}
	return "Unknown"
}

func (c *Client) cityFromIP(ctx context.Context) string {
	var body struct {
		City string `json:"city"`
	}
	err := c.guarded(func() error {
		return c.get(ctx, c.cfg.IPURL, lookupTimeout, &body)
	})
	if err != nil {
		c.logger.Warn("locating by ip", "error", err)
		return fallbackCity
	}
	if body.City == "" {
		return fallbackCity
	}
	return body.City
}

// guarded runs fn as one breaker request.
func (c *Client) guarded(fn func() error) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("weather service unavailable: %w", err)
	}
	return err
}

func (c *Client) get(ctx context.Context, rawURL string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
