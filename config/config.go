package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Camera     CameraConfig     `yaml:"camera"`
	Captures   CapturesConfig   `yaml:"captures"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Vision     VisionConfig     `yaml:"vision"`
	Weather    WeatherConfig    `yaml:"weather"`
	Events     EventsConfig     `yaml:"events"`
	Speech     SpeechConfig     `yaml:"speech"`
	Agent      AgentConfig      `yaml:"agent"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	PublicURL string `yaml:"public_url"`
	// RateLimit is requests per minute per client on /voice endpoints.
	RateLimit int `yaml:"rate_limit"`
	// TrustProxy honours X-Forwarded-For when rate limiting. Set it only
	// behind a reverse proxy.
	TrustProxy bool `yaml:"trust_proxy"`
}

type CameraConfig struct {
	// Backend is "ffmpeg" or "none". With "none" the display captures photos.
	Backend      string `yaml:"backend"`
	Device       string `yaml:"device"`
	InputFormat  string `yaml:"input_format"`
	FFmpegPath   string `yaml:"ffmpeg_path"`
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	WarmupFrames int    `yaml:"warmup_frames"`
	FrameRetries int    `yaml:"frame_retries"`
}

type CapturesConfig struct {
	Dir           string        `yaml:"dir"`
	Expiry        time.Duration `yaml:"expiry"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type ClassifierConfig struct {
	// Provider is one of openai, anthropic, gemini, rules.
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Proxy       string        `yaml:"proxy"`
}

type VisionConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type WeatherConfig struct {
	APIKey  string        `yaml:"api_key"`
	Lat     string        `yaml:"lat"`
	Lon     string        `yaml:"lon"`
	City    string        `yaml:"city"`
	Timeout time.Duration `yaml:"timeout"`
}

type EventsConfig struct {
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
}

type SpeechConfig struct {
	Enabled bool   `yaml:"enabled"`
	Binary  string `yaml:"binary"`
	Voice   string `yaml:"voice"`
	Rate    int    `yaml:"rate"`
}

type AgentConfig struct {
	ServerURL            string        `yaml:"server_url"`
	Source               string        `yaml:"source"`
	FileDir              string        `yaml:"file_dir"`
	SampleRate           int           `yaml:"sample_rate"`
	FrameLength          int           `yaml:"frame_length"`
	RecordDuration       time.Duration `yaml:"record_duration"`
	TranscriptionTimeout time.Duration `yaml:"transcription_timeout"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	Cooldown             time.Duration `yaml:"cooldown"`
	CueFile              string        `yaml:"cue_file"`
	Transcriber          string        `yaml:"transcriber"`
	WhisperBin           string        `yaml:"whisper_bin"`
	WhisperModel         string        `yaml:"whisper_model"`
	WhisperLanguage      string        `yaml:"whisper_language"`
	OpenAIKey            string        `yaml:"openai_api_key"`

	WakeWord WakeWordConfig `yaml:"wake_word"`
}

type WakeWordConfig struct {
	LibraryPath string   `yaml:"library_path"`
	ModelPath   string   `yaml:"model_path"`
	Keywords    []string `yaml:"keywords"`
	Sensitivity float32  `yaml:"sensitivity"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5001"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 30
	}
	if c.Camera.Backend == "" {
		c.Camera.Backend = "ffmpeg"
	}
	if c.Camera.Device == "" {
		c.Camera.Device = "/dev/video0"
	}
	if c.Camera.InputFormat == "" {
		c.Camera.InputFormat = "v4l2"
	}
	if c.Camera.FFmpegPath == "" {
		c.Camera.FFmpegPath = "ffmpeg"
	}
	if c.Camera.Width == 0 || c.Camera.Height == 0 {
		c.Camera.Width, c.Camera.Height = 1280, 720
	}
	if c.Camera.WarmupFrames == 0 {
		c.Camera.WarmupFrames = 5
	}
	if c.Camera.FrameRetries == 0 {
		c.Camera.FrameRetries = 8
	}
	if c.Captures.Dir == "" {
		c.Captures.Dir = "./captures"
	}
	if c.Captures.Expiry == 0 {
		c.Captures.Expiry = 48 * time.Hour
	}
	if c.Captures.SweepInterval == 0 {
		c.Captures.SweepInterval = time.Hour
	}
	if c.Classifier.Provider == "" {
		c.Classifier.Provider = "openai"
	}
	if c.Classifier.Temperature == 0 {
		c.Classifier.Temperature = 0.4
	}
	if c.Classifier.Timeout == 0 {
		c.Classifier.Timeout = 10 * time.Second
	}
	if c.Vision.APIKey == "" && c.Classifier.Provider == "openai" {
		c.Vision.APIKey = c.Classifier.APIKey
	}
	if c.Vision.Model == "" {
		c.Vision.Model = "gpt-4.1-mini"
	}
	if c.Weather.Timeout == 0 {
		c.Weather.Timeout = 7 * time.Second
	}
	if c.Events.NATSSubject == "" {
		c.Events.NATSSubject = "mirror.events"
	}
	if c.Speech.Binary == "" {
		c.Speech.Binary = "espeak-ng"
	}
	if c.Speech.Rate == 0 {
		c.Speech.Rate = 175
	}
	if c.Agent.ServerURL == "" {
		c.Agent.ServerURL = "http://127.0.0.1:5001"
	}
	if c.Agent.Source == "" {
		c.Agent.Source = "microphone"
	}
	if c.Agent.FileDir == "" {
		c.Agent.FileDir = "./audio"
	}
	if c.Agent.SampleRate == 0 {
		c.Agent.SampleRate = 16000
	}
	if c.Agent.FrameLength == 0 {
		c.Agent.FrameLength = 512
	}
	if c.Agent.RecordDuration == 0 {
		c.Agent.RecordDuration = 3500 * time.Millisecond
	}
	if c.Agent.TranscriptionTimeout == 0 {
		c.Agent.TranscriptionTimeout = 30 * time.Second
	}
	if c.Agent.RequestTimeout == 0 {
		c.Agent.RequestTimeout = 10 * time.Second
	}
	if c.Agent.Cooldown == 0 {
		c.Agent.Cooldown = 300 * time.Millisecond
	}
	if c.Agent.Transcriber == "" {
		c.Agent.Transcriber = "whisper-cli"
	}
	if c.Agent.WhisperBin == "" {
		c.Agent.WhisperBin = "whisper-cli"
	}
	if c.Agent.WhisperLanguage == "" {
		c.Agent.WhisperLanguage = "en"
	}
	if c.Agent.WakeWord.Sensitivity == 0 {
		c.Agent.WakeWord.Sensitivity = 0.65
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
