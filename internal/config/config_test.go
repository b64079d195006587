package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Registry.Backend = "redis"
	cfg.Registry.TTL = 24 * time.Hour
	cfg.Script.Provider = "openai"
	cfg.Script.OpenAIKey = "sk-test"
	cfg.Synthesis.EndpointURL = "https://api.example.com/v2/abc"
	cfg.Synthesis.APIKey = "rp-test"
	cfg.Audio.SpeakerVoices = map[string]string{"A": "philip.wav"}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"SERVER_HOST", "SERVER_PORT", "REDIS_ADDR", "REGISTRY_BACKEND", "REGISTRY_TTL", "SYNTH_POLL_INTERVAL", "SYNTH_POLL_TIMEOUT", "SYNTH_LANGUAGE", "SPEAKER_VOICES"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "redis", cfg.Registry.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Registry.TTL)
	assert.Equal(t, 3*time.Second, cfg.Synthesis.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Synthesis.PollTimeout)
	assert.Equal(t, "en", cfg.Synthesis.Language)
	assert.Equal(t, map[string]string{"A": "philip.wav", "B": "oskar.wav"}, cfg.Audio.SpeakerVoices)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SYNTH_POLL_INTERVAL", "500ms")
	t.Setenv("SYNTH_POLL_TIMEOUT", "2m")
	t.Setenv("SPEAKER_VOICES", "HOST=anna.wav,GUEST=mart.wav")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Synthesis.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Synthesis.PollTimeout)
	assert.Equal(t, map[string]string{"HOST": "anna.wav", "GUEST": "mart.wav"}, cfg.Audio.SpeakerVoices)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("SYNTH_POLL_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNTH_POLL_INTERVAL")
}

func TestValidate_MissingRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Synthesis.EndpointURL = ""
	cfg.Script.OpenAIKey = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNTH_ENDPOINT_URL")
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestValidate_UnknownScriptProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Script.Provider = "gemini"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCRIPT_PROVIDER")
}

func TestValidate_PostgresBackendNeedsURL(t *testing.T) {
	cfg := validConfig()
	cfg.Registry.Backend = "postgres"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_URL")
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestParseSpeakerVoices_Malformed(t *testing.T) {
	_, err := parseSpeakerVoices("A=philip.wav,junk")
	require.Error(t, err)
}
