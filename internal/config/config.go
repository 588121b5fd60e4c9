package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	BlockSize  int    `yaml:"block_size"`
	Device     string `yaml:"device"`
	Channels   int    `yaml:"channels"`
}

type RecognizerConfig struct {
	Mode          string  `yaml:"mode"` // vosk, exec, mock
	ModelPath     string  `yaml:"model_path"`
	Command       string  `yaml:"command"`
	Language      string  `yaml:"language"`
	VADMode       int     `yaml:"vad_mode"`
	SilenceHoldMS int     `yaml:"silence_hold_ms"`
	MaxBufferSec  float64 `yaml:"max_buffer_sec"`
}

type QueueConfig struct {
	Capacity int    `yaml:"capacity"`
	Policy   string `yaml:"policy"` // drop_oldest, drop_newest
}

type RewriteConfig struct {
	Symbols map[string]string `yaml:"symbols"`
}

type HistoryConfig struct {
	Mode          string `yaml:"mode"` // ephemeral, persistent
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	ServiceName string           `yaml:"service_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Audio       AudioConfig      `yaml:"audio"`
	Recognizer  RecognizerConfig `yaml:"recognizer"`
	Queue       QueueConfig      `yaml:"queue"`
	Rewrite     RewriteConfig    `yaml:"rewrite"`
	History     HistoryConfig    `yaml:"history"`
}

func Default() Config {
	return Config{
		ServiceName: "earshot",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			BlockSize:  8000,
			Device:     "",
			Channels:   1,
		},
		Recognizer: RecognizerConfig{
			Mode:          "vosk",
			ModelPath:     "./models/vosk-model-en-us-daanzu-20200905",
			VADMode:       2,
			SilenceHoldMS: 600,
			MaxBufferSec:  30,
		},
		Queue: QueueConfig{
			Capacity: 64,
			Policy:   "drop_oldest",
		},
		History: HistoryConfig{
			Mode:          "ephemeral",
			Path:          "./data/earshot-utterances.db",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "EARSHOT_SERVICE_NAME")
	overrideString(&cfg.Environment, "EARSHOT_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "EARSHOT_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "EARSHOT_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "EARSHOT_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "EARSHOT_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "EARSHOT_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "EARSHOT_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "EARSHOT_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "EARSHOT_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "EARSHOT_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "EARSHOT_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "EARSHOT_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "EARSHOT_BUS_TOKEN")
	overrideInt(&cfg.Bus.ConnectTimeout, "EARSHOT_BUS_CONNECT_TIMEOUT_MS")
	overrideInt(&cfg.Audio.SampleRate, "EARSHOT_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.BlockSize, "EARSHOT_AUDIO_BLOCK_SIZE")
	overrideString(&cfg.Audio.Device, "EARSHOT_AUDIO_DEVICE")
	overrideInt(&cfg.Audio.Channels, "EARSHOT_AUDIO_CHANNELS")
	overrideString(&cfg.Recognizer.Mode, "EARSHOT_RECOGNIZER_MODE")
	overrideString(&cfg.Recognizer.ModelPath, "EARSHOT_RECOGNIZER_MODEL_PATH")
	overrideString(&cfg.Recognizer.Command, "EARSHOT_RECOGNIZER_COMMAND")
	overrideString(&cfg.Recognizer.Language, "EARSHOT_RECOGNIZER_LANGUAGE")
	overrideInt(&cfg.Recognizer.VADMode, "EARSHOT_RECOGNIZER_VAD_MODE")
	overrideInt(&cfg.Recognizer.SilenceHoldMS, "EARSHOT_RECOGNIZER_SILENCE_HOLD_MS")
	overrideFloat(&cfg.Recognizer.MaxBufferSec, "EARSHOT_RECOGNIZER_MAX_BUFFER_SEC")
	overrideInt(&cfg.Queue.Capacity, "EARSHOT_QUEUE_CAPACITY")
	overrideString(&cfg.Queue.Policy, "EARSHOT_QUEUE_POLICY")
	overrideString(&cfg.History.Mode, "EARSHOT_HISTORY_MODE")
	overrideString(&cfg.History.Path, "EARSHOT_HISTORY_PATH")
	overrideInt(&cfg.History.RetentionDays, "EARSHOT_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxSessions, "EARSHOT_HISTORY_MAX_SESSIONS")
	overrideBool(&cfg.History.VacuumOnStart, "EARSHOT_HISTORY_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if cfg.Audio.BlockSize <= 0 {
		return errors.New("audio.block_size must be positive")
	}
	if cfg.Audio.Channels != 1 {
		return errors.New("audio.channels must be 1 (mono capture only)")
	}
	switch cfg.Recognizer.Mode {
	case "vosk", "exec", "mock":
	default:
		return errors.New("recognizer.mode must be one of vosk|exec|mock")
	}
	if cfg.Recognizer.Mode == "vosk" && cfg.Recognizer.ModelPath == "" {
		return errors.New("recognizer.model_path must be set when mode=vosk")
	}
	if cfg.Recognizer.Mode == "exec" {
		if cfg.Recognizer.Command == "" {
			return errors.New("recognizer.command must be set when mode=exec")
		}
		// WebRTC VAD segments exec-mode audio and only accepts these rates.
		switch cfg.Audio.SampleRate {
		case 8000, 16000, 32000, 48000:
		default:
			return errors.New("audio.sample_rate must be 8000, 16000, 32000, or 48000 when mode=exec")
		}
		if cfg.Recognizer.VADMode < 0 || cfg.Recognizer.VADMode > 3 {
			return errors.New("recognizer.vad_mode must be between 0 and 3")
		}
		if cfg.Recognizer.SilenceHoldMS <= 0 {
			return errors.New("recognizer.silence_hold_ms must be positive when mode=exec")
		}
	}
	if cfg.Queue.Capacity <= 0 {
		return errors.New("queue.capacity must be positive")
	}
	switch cfg.Queue.Policy {
	case "drop_oldest", "drop_newest":
	default:
		return errors.New("queue.policy must be one of drop_oldest|drop_newest")
	}
	switch cfg.History.Mode {
	case "ephemeral", "persistent":
	default:
		return errors.New("history.mode must be one of ephemeral|persistent")
	}
	if cfg.History.Mode == "persistent" && cfg.History.Path == "" {
		return errors.New("history.path must not be empty when mode=persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	for token := range cfg.Rewrite.Symbols {
		if strings.TrimSpace(token) == "" {
			return errors.New("rewrite.symbols keys must not be blank")
		}
		if strings.ContainsAny(token, " \t") {
			return errors.New("rewrite.symbols keys must be single tokens")
		}
	}
	return nil
}
