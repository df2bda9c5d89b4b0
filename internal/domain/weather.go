package domain

type WeatherReport struct {
	City        string          `json:"city,omitempty"`
	Temp        *float64        `json:"temp,omitempty"`
	FeelsLike   *float64        `json:"feels_like,omitempty"`
	Humidity    *float64        `json:"humidity,omitempty"`
	Wind        *float64        `json:"wind,omitempty"`
	Description string          `json:"description,omitempty"`
	Icon        string          `json:"icon,omitempty"`
	Forecast    []DailyForecast `json:"forecast,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type DailyForecast struct {
	Date    string  `json:"date"`
	Temp    float64 `json:"temp"`
	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`
	Weather string  `json:"weather"`
	Icon    string  `json:"icon"`
}
