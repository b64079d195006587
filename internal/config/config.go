package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Registry  RegistryConfig
	Auth      AuthConfig
	Script    ScriptConfig
	Synthesis SynthesisConfig
	Audio     AudioConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// RegistryConfig selects the job status store. Backend is one of
// "redis", "postgres", "memory".
type RegistryConfig struct {
	Backend string
	TTL     time.Duration
}

type AuthConfig struct {
	JWTSecret string // empty disables authentication
}

type ScriptConfig struct {
	Provider     string // "openai" or "anthropic"
	OpenAIKey    string
	AnthropicKey string
	Model        string
}

type SynthesisConfig struct {
	EndpointURL  string
	APIKey       string
	Language     string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type AudioConfig struct {
	FFmpegBin  string
	UploadDir  string
	OutputDir  string
	IntroPath  string
	SpacerPath string
	// SpeakerVoices maps a script speaker code to the voice reference
	// filename the synthesis backend expects, e.g. A -> philip.wav.
	SpeakerVoices map[string]string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns, err := getEnvInt("PG_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid PG_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("PG_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid PG_MIN_CONNS: %w", err)
	}

	registryTTL, err := getEnvDuration("REGISTRY_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid REGISTRY_TTL: %w", err)
	}

	pollInterval, err := getEnvDuration("SYNTH_POLL_INTERVAL", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNTH_POLL_INTERVAL: %w", err)
	}

	pollTimeout, err := getEnvDuration("SYNTH_POLL_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNTH_POLL_TIMEOUT: %w", err)
	}

	voices, err := parseSpeakerVoices(getEnv("SPEAKER_VOICES", "A=philip.wav,B=oskar.wav"))
	if err != nil {
		return nil, fmt.Errorf("invalid SPEAKER_VOICES: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Postgres: PostgresConfig{
			URL:      getEnv("POSTGRES_URL", ""),
			MaxConns: maxConns,
			MinConns: minConns,
		},
		Registry: RegistryConfig{
			Backend: getEnv("REGISTRY_BACKEND", "redis"),
			TTL:     registryTTL,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Script: ScriptConfig{
			Provider:     getEnv("SCRIPT_PROVIDER", "openai"),
			OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
			AnthropicKey: getEnv("ANTHROPIC_API_KEY", ""),
			Model:        getEnv("SCRIPT_MODEL", ""),
		},
		Synthesis: SynthesisConfig{
			EndpointURL:  getEnv("SYNTH_ENDPOINT_URL", ""),
			APIKey:       getEnv("SYNTH_API_KEY", ""),
			Language:     getEnv("SYNTH_LANGUAGE", "en"),
			PollInterval: pollInterval,
			PollTimeout:  pollTimeout,
		},
		Audio: AudioConfig{
			FFmpegBin:     getEnv("FFMPEG_BIN", "ffmpeg"),
			UploadDir:     getEnv("UPLOAD_DIR", "temp_uploads"),
			OutputDir:     getEnv("OUTPUT_DIR", "final_audio"),
			IntroPath:     getEnv("INTRO_AUDIO_PATH", "reference/podcast_intro.wav"),
			SpacerPath:    getEnv("SPACER_AUDIO_PATH", "reference/silent_voice.wav"),
			SpeakerVoices: voices,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Synthesis.EndpointURL == "" {
		missing = append(missing, "SYNTH_ENDPOINT_URL")
	}
	if c.Synthesis.APIKey == "" {
		missing = append(missing, "SYNTH_API_KEY")
	}
	switch c.Script.Provider {
	case "openai":
		if c.Script.OpenAIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case "anthropic":
		if c.Script.AnthropicKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	default:
		return fmt.Errorf("unknown SCRIPT_PROVIDER: %q", c.Script.Provider)
	}
	switch c.Registry.Backend {
	case "redis", "memory":
	case "postgres":
		if c.Postgres.URL == "" {
			missing = append(missing, "POSTGRES_URL")
		}
	default:
		return fmt.Errorf("unknown REGISTRY_BACKEND: %q", c.Registry.Backend)
	}
	if len(c.Audio.SpeakerVoices) == 0 {
		missing = append(missing, "SPEAKER_VOICES")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

// parseSpeakerVoices parses "A=philip.wav,B=oskar.wav" into a map.
func parseSpeakerVoices(s string) (map[string]string, error) {
	voices := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, ref, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(code) == "" || strings.TrimSpace(ref) == "" {
			return nil, fmt.Errorf("malformed entry %q, want CODE=reference.wav", pair)
		}
		voices[strings.TrimSpace(code)] = strings.TrimSpace(ref)
	}
	return voices, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
