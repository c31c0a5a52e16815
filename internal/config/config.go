package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type ServerConfig struct {
	HTTPAddr string

	IntentsPath  string
	CommandsPath string

	AuthorizedIntents   []string
	ConfidenceThreshold float64
	FallbackFloor       float64

	ScorerMode    string
	ScorerBaseURL string
	ScorerTimeout time.Duration

	ASRMode     string
	ASRBaseURL  string
	ASRTimeout  time.Duration
	ASRLanguage string
	ASRMockText string

	AuditDBDSN string

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := ServerConfig{
		HTTPAddr:            getenvDefault("VOICECMD_HTTP_ADDR", ":9020"),
		IntentsPath:         getenvDefault("INTENTS_CONFIG", "config/intents.yaml"),
		CommandsPath:        getenvDefault("COMMANDS_CONFIG", "config/commands.yaml"),
		AuthorizedIntents:   getenvList("AUTHORIZED_INTENTS"),
		ConfidenceThreshold: getenvFloatDefault("CONFIDENCE_THRESHOLD", 0.7),
		FallbackFloor:       getenvFloatDefault("NLU_FALLBACK_FLOOR", 0.35),
		ScorerMode:          getenvDefault("SCORER_MODE", "keyword"),
		ScorerBaseURL:       os.Getenv("SCORER_BASE_URL"),
		ScorerTimeout:       time.Duration(getenvIntDefault("SCORER_TIMEOUT_MS", 1500)) * time.Millisecond,
		ASRMode:             os.Getenv("ASR_MODE"),
		ASRBaseURL:          os.Getenv("ASR_BASE_URL"),
		ASRTimeout:          time.Duration(getenvIntDefault("ASR_TIMEOUT_SECONDS", 15)) * time.Second,
		ASRLanguage:         getenvDefault("ASR_LANGUAGE", "en"),
		ASRMockText:         os.Getenv("ASR_MOCK_TEXT"),
		AuditDBDSN:          os.Getenv("AUDIT_DB_DSN"),
		MQTTBrokerURL:       os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:        getenvDefault("VOICECMD_MQTT_CLIENT_ID", "voicecmd-server"),
		MQTTUsername:        os.Getenv("MQTT_USERNAME"),
		MQTTPassword:        os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix:     getenvDefault("MQTT_TOPIC_PREFIX", "voicecmd"),
	}

	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return ServerConfig{}, fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0,1]")
	}
	if cfg.FallbackFloor <= 0 || cfg.FallbackFloor > 1 {
		return ServerConfig{}, fmt.Errorf("NLU_FALLBACK_FLOOR must be in (0,1]")
	}
	if cfg.ScorerMode == "semantic" && cfg.ScorerBaseURL == "" {
		return ServerConfig{}, fmt.Errorf("SCORER_BASE_URL is required when SCORER_MODE=semantic")
	}
	if cfg.ASRMode == "http" && cfg.ASRBaseURL == "" {
		return ServerConfig{}, fmt.Errorf("ASR_BASE_URL is required when ASR_MODE=http")
	}

	return cfg, nil
}

func getenvDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}

func getenvFloatDefault(key string, val float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return val
	}
	return f
}

func getenvList(key string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			out = append(out, name)
		}
	}
	return out
}
