package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultAgentName         = "Lull"
	DefaultUserName          = "Amita"
	DefaultTranslateEndpoint = "https://libretranslate.de/translate"
	DefaultSocketPath        = "/tmp/lull.sock"
	DefaultBusURL            = "ws://localhost:8092/ws"
)

type Config struct {
	AgentName string
	UserName  string
	LogLevel  string
	TextInput bool

	OpenAIKey     string
	OpenAIBaseURL string
	QAModel       string
	VisionModel   string

	WhisperModelPath string
	STTLanguage      string
	AudioFile        string

	TranslateEndpoint string
	TranslateAPIKey   string
	TranslateTimeout  time.Duration
	ProxyAddr         string

	CameraDevice     string
	ScreenCaptureCmd []string
	BeepPath         string
	DuckAudio        bool

	SocketPath  string
	BusURL      string
	MetricsAddr string
}

// flag name -> viper key
var flagKeys = map[string]string{
	"log":     "log_level",
	"text":    "text_input",
	"proxy":   "socks_proxy",
	"model":   "whisper_model_path",
	"audio":   "audio_file",
	"socket":  "socket_path",
	"bus":     "bus_url",
	"metrics": "metrics_addr",
	"duck":    "duck_audio",
}

// Load reads envFile (missing file is fine), then resolves every key from
// flags, environment and defaults in that order of precedence.
func Load(flags *pflag.FlagSet, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{
		AgentName: strings.TrimSpace(v.GetString("agent_name")),
		UserName:  strings.TrimSpace(v.GetString("user_name")),
		LogLevel:  strings.ToLower(v.GetString("log_level")),
		TextInput: v.GetBool("text_input"),

		OpenAIKey:     strings.TrimSpace(v.GetString("openai_api_key")),
		OpenAIBaseURL: v.GetString("openai_base_url"),
		QAModel:       v.GetString("qa_model_name"),
		VisionModel:   v.GetString("vision_model"),

		WhisperModelPath: strings.TrimSpace(v.GetString("whisper_model_path")),
		STTLanguage:      v.GetString("stt_language"),
		AudioFile:        v.GetString("audio_file"),

		TranslateEndpoint: strings.TrimSpace(v.GetString("libretranslate_endpoint")),
		TranslateAPIKey:   strings.TrimSpace(v.GetString("libretranslate_api_key")),
		TranslateTimeout:  v.GetDuration("translate_timeout"),
		ProxyAddr:         strings.TrimSpace(v.GetString("socks_proxy")),

		CameraDevice:     v.GetString("camera_device"),
		ScreenCaptureCmd: strings.Fields(v.GetString("screen_capture_cmd")),
		BeepPath:         v.GetString("beep_path"),
		DuckAudio:        v.GetBool("duck_audio"),

		SocketPath:  v.GetString("socket_path"),
		BusURL:      v.GetString("bus_url"),
		MetricsAddr: v.GetString("metrics_addr"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent_name", DefaultAgentName)
	v.SetDefault("user_name", DefaultUserName)
	v.SetDefault("log_level", "info")
	v.SetDefault("qa_model_name", "gpt-4o-mini")
	v.SetDefault("vision_model", "gpt-4o-mini")
	v.SetDefault("stt_language", "auto")
	v.SetDefault("libretranslate_endpoint", DefaultTranslateEndpoint)
	v.SetDefault("translate_timeout", 10*time.Second)
	v.SetDefault("camera_device", "0")
	v.SetDefault("screen_capture_cmd", "grim -")
	v.SetDefault("beep_path", "beep.mp3")
	v.SetDefault("socket_path", DefaultSocketPath)
	v.SetDefault("bus_url", DefaultBusURL)
}

func (c *Config) validate() error {
	if c.AgentName == "" {
		return errors.New("AGENT_NAME must not be empty")
	}
	if c.TranslateTimeout <= 0 {
		return fmt.Errorf("TRANSLATE_TIMEOUT must be positive, got %s", c.TranslateTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
