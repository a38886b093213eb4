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
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type JournalConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type MediaConfig struct {
	Dir string `yaml:"dir"`
}

// IngestConfig controls the per-session segment watch/queue/cleanup loop.
type IngestConfig struct {
	TempDir          string `yaml:"temp_dir"`
	SegmentExtension string `yaml:"segment_extension"`
	QueueDepth       int    `yaml:"queue_depth"`
	DeleteAttempts   int    `yaml:"delete_attempts"`
	DeleteWaitMS     int    `yaml:"delete_wait_ms"`
}

// SpeechConfig selects the transcription/alignment/diarization/embedding
// backends. In exec mode each capability is an external command emitting
// JSON on stdout.
type SpeechConfig struct {
	Mode              string `yaml:"mode"` // mock, exec
	TranscribeCommand string `yaml:"transcribe_command"`
	AlignCommand      string `yaml:"align_command"`
	DiarizeCommand    string `yaml:"diarize_command"`
	EmbedCommand      string `yaml:"embed_command"`
	ModelPath         string `yaml:"model_path"`
	Language          string `yaml:"language"`
	SegmentTimeoutMS  int    `yaml:"segment_timeout_ms"`
}

type SpeakersConfig struct {
	EmbeddingDir     string  `yaml:"embedding_dir"`
	UnknownThreshold float64 `yaml:"unknown_threshold"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Journal     JournalConfig   `yaml:"journal"`
	Media       MediaConfig     `yaml:"media"`
	Ingest      IngestConfig    `yaml:"ingest"`
	Speech      SpeechConfig    `yaml:"speech"`
	Speakers    SpeakersConfig  `yaml:"speakers"`
}

func Default() Config {
	return Config{
		RuntimeName: "soundbite-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8000,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        true,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Journal: JournalConfig{
			Path:          "./data/soundbite-journal.db",
			RetentionMode: "session",
			RetentionDays: 30,
		},
		Media: MediaConfig{
			Dir: "./media",
		},
		Ingest: IngestConfig{
			TempDir:          "./data/temp_audio",
			SegmentExtension: ".wav",
			QueueDepth:       64,
			DeleteAttempts:   5,
			DeleteWaitMS:     500,
		},
		Speech: SpeechConfig{
			Mode:             "mock",
			Language:         "en",
			SegmentTimeoutMS: 60000,
		},
		Speakers: SpeakersConfig{
			EmbeddingDir:     "./data/embeddings",
			UnknownThreshold: 0.1,
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
	overrideString(&cfg.RuntimeName, "SOUNDBITE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "SOUNDBITE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SOUNDBITE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SOUNDBITE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SOUNDBITE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SOUNDBITE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SOUNDBITE_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "SOUNDBITE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "SOUNDBITE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SOUNDBITE_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "SOUNDBITE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SOUNDBITE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SOUNDBITE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SOUNDBITE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SOUNDBITE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SOUNDBITE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Journal.Path, "SOUNDBITE_JOURNAL_PATH")
	overrideString(&cfg.Journal.RetentionMode, "SOUNDBITE_JOURNAL_RETENTION_MODE")
	overrideInt(&cfg.Journal.RetentionDays, "SOUNDBITE_JOURNAL_RETENTION_DAYS")
	overrideBool(&cfg.Journal.VacuumOnStart, "SOUNDBITE_JOURNAL_VACUUM_ON_START")
	overrideString(&cfg.Media.Dir, "SOUNDBITE_MEDIA_DIR")
	overrideString(&cfg.Ingest.TempDir, "SOUNDBITE_INGEST_TEMP_DIR")
	overrideString(&cfg.Ingest.SegmentExtension, "SOUNDBITE_INGEST_SEGMENT_EXTENSION")
	overrideInt(&cfg.Ingest.QueueDepth, "SOUNDBITE_INGEST_QUEUE_DEPTH")
	overrideInt(&cfg.Ingest.DeleteAttempts, "SOUNDBITE_INGEST_DELETE_ATTEMPTS")
	overrideInt(&cfg.Ingest.DeleteWaitMS, "SOUNDBITE_INGEST_DELETE_WAIT_MS")
	overrideString(&cfg.Speech.Mode, "SOUNDBITE_SPEECH_MODE")
	overrideString(&cfg.Speech.TranscribeCommand, "SOUNDBITE_SPEECH_TRANSCRIBE_COMMAND")
	overrideString(&cfg.Speech.AlignCommand, "SOUNDBITE_SPEECH_ALIGN_COMMAND")
	overrideString(&cfg.Speech.DiarizeCommand, "SOUNDBITE_SPEECH_DIARIZE_COMMAND")
	overrideString(&cfg.Speech.EmbedCommand, "SOUNDBITE_SPEECH_EMBED_COMMAND")
	overrideString(&cfg.Speech.ModelPath, "SOUNDBITE_SPEECH_MODEL_PATH")
	overrideString(&cfg.Speech.Language, "SOUNDBITE_SPEECH_LANGUAGE")
	overrideInt(&cfg.Speech.SegmentTimeoutMS, "SOUNDBITE_SPEECH_SEGMENT_TIMEOUT_MS")
	overrideString(&cfg.Speakers.EmbeddingDir, "SOUNDBITE_SPEAKERS_EMBEDDING_DIR")
	overrideFloat(&cfg.Speakers.UnknownThreshold, "SOUNDBITE_SPEAKERS_UNKNOWN_THRESHOLD")
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
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
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
	switch cfg.Journal.RetentionMode {
	case "ephemeral", "session", "persistent":
	default:
		return errors.New("journal.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Journal.RetentionMode != "ephemeral" && cfg.Journal.Path == "" {
		return errors.New("journal.path must not be empty")
	}
	if cfg.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be >= 0")
	}
	if cfg.Media.Dir == "" {
		return errors.New("media.dir must not be empty")
	}
	if cfg.Ingest.TempDir == "" {
		return errors.New("ingest.temp_dir must not be empty")
	}
	if !strings.HasPrefix(cfg.Ingest.SegmentExtension, ".") {
		return errors.New("ingest.segment_extension must start with a dot")
	}
	if cfg.Ingest.QueueDepth <= 0 {
		return errors.New("ingest.queue_depth must be >= 1")
	}
	if cfg.Ingest.DeleteAttempts <= 0 {
		return errors.New("ingest.delete_attempts must be >= 1")
	}
	if cfg.Ingest.DeleteWaitMS < 0 {
		return errors.New("ingest.delete_wait_ms must be >= 0")
	}
	switch cfg.Speech.Mode {
	case "mock":
	case "exec":
		if cfg.Speech.TranscribeCommand == "" {
			return errors.New("speech.transcribe_command must be set when mode=exec")
		}
		if cfg.Speech.AlignCommand == "" {
			return errors.New("speech.align_command must be set when mode=exec")
		}
		if cfg.Speech.DiarizeCommand == "" {
			return errors.New("speech.diarize_command must be set when mode=exec")
		}
		if cfg.Speech.EmbedCommand == "" {
			return errors.New("speech.embed_command must be set when mode=exec")
		}
	default:
		return errors.New("speech.mode must be one of mock|exec")
	}
	if cfg.Speech.SegmentTimeoutMS < 0 {
		return errors.New("speech.segment_timeout_ms must be >= 0")
	}
	if cfg.Speakers.EmbeddingDir == "" {
		return errors.New("speakers.embedding_dir must not be empty")
	}
	if cfg.Speakers.UnknownThreshold < -1 || cfg.Speakers.UnknownThreshold > 1 {
		return errors.New("speakers.unknown_threshold must be within [-1, 1]")
	}
	return nil
}
