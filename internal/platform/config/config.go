package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string
	TenantID    string

	// DemoMode wires the in-memory stores instead of postgres so the demo
	// reset flow can run without external state.
	DemoMode bool

	QuorumThreshold  float64
	MinOpenDuration  time.Duration
	MinParticipation float64
	TokenTTL         time.Duration
	IdempotencyTTL   time.Duration
	RelayBatchSize   int
	RelayInterval    time.Duration
}

func Load() (Config, error) {
	// Optional local override file; absence is not an error.
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "agora"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	tenant := strings.TrimSpace(os.Getenv("TENANT_ID"))
	if tenant == "" {
		tenant = "default"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		TenantID:    tenant,
		DemoMode:    envBool("DEMO_MODE", false),

		QuorumThreshold:  envFloat("QUORUM_THRESHOLD", 0.5),
		MinOpenDuration:  envDuration("MIN_OPEN_DURATION", 0),
		MinParticipation: envFloat("MIN_PARTICIPATION", 0),
		TokenTTL:         envDuration("TOKEN_TTL", 2*time.Hour),
		IdempotencyTTL:   envDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		RelayBatchSize:   envInt("RELAY_BATCH_SIZE", 100),
		RelayInterval:    envDuration("RELAY_INTERVAL", 2*time.Second),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
