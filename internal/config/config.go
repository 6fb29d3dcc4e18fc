package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds shared runtime configuration for the API and worker services.
type Config struct {
	Env         string
	ServiceName string
	HTTPPort    string
	MetricsAddr string
	CORSOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	QueueKey     string
	ResultPrefix string
	ProjectKey   string
	ResultTTL    time.Duration
	PopTimeout   time.Duration
	JobTimeout   time.Duration

	OpenAIAPIKey        string
	AzureOpenAIEndpoint string
	AzureOpenAIAPIKey   string
	AzureAPIVersion     string
	Model               string
	RouterModel         string
	SynthesisModel      string
	LLMTimeout          time.Duration

	RouterMode           string
	RoutingTemperature   float64
	RoutingMaxTokens     int
	AgentTemperature     float64
	AgentMaxTokens       int
	SynthesisTemperature float64
	SynthesisMaxTokens   int
	TopK                 int

	SearchEndpoint   string
	SearchAPIKey     string
	SensorIndex      string
	OperatorIndex    string
	MaintenanceIndex string
	DatasetsDir      string

	HistoryDSN string

	ReportsDir         string
	ReportsS3Bucket    string
	ReportsS3Region    string
	ReportsS3Endpoint  string
	ReportsS3PathStyle bool

	RateLimitCapacity int
	RateLimitRefill   float64
}

// Load reads configuration from environment variables with sane defaults for
// local development. A .env file in the working directory is merged in first;
// real environment variables win over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		ServiceName: getEnv("SERVICE_NAME", "rca-copilot"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9091"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001"}),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 1),

		QueueKey:     getEnv("QUEUE_KEY", "rca:queue"),
		ResultPrefix: getEnv("RESULT_PREFIX", "rca:result:"),
		ProjectKey:   getEnv("PROJECT_KEY", "rca:project:name"),
		ResultTTL:    getEnvDuration("RESULT_TTL", time.Hour),
		PopTimeout:   getEnvDuration("POP_TIMEOUT", time.Second),
		JobTimeout:   getEnvDuration("JOB_TIMEOUT", 5*time.Minute),

		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		AzureOpenAIEndpoint: getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIAPIKey:   getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureAPIVersion:     getEnv("AZURE_OPENAI_API_VERSION", "2024-02-15-preview"),
		Model:               getEnv("LLM_MODEL", "gpt-4"),
		RouterModel:         getEnv("ROUTER_MODEL", getEnv("LLM_MODEL", "gpt-4")),
		SynthesisModel:      getEnv("SYNTHESIS_MODEL", getEnv("LLM_MODEL", "gpt-4")),
		LLMTimeout:          getEnvDuration("LLM_TIMEOUT", 60*time.Second),

		RouterMode:           getEnv("ROUTER_MODE", "llm"),
		RoutingTemperature:   getEnvFloat("ROUTING_TEMPERATURE", 0.3),
		RoutingMaxTokens:     getEnvInt("ROUTING_MAX_TOKENS", 500),
		AgentTemperature:     getEnvFloat("AGENT_TEMPERATURE", 0.7),
		AgentMaxTokens:       getEnvInt("AGENT_MAX_TOKENS", 2000),
		SynthesisTemperature: getEnvFloat("SYNTHESIS_TEMPERATURE", 0.7),
		SynthesisMaxTokens:   getEnvInt("SYNTHESIS_MAX_TOKENS", 400),
		TopK:                 getEnvInt("SEARCH_TOP_K", 5),

		SearchEndpoint:   getEnv("AZURE_SEARCH_ENDPOINT", ""),
		SearchAPIKey:     getEnv("AZURE_SEARCH_API_KEY", ""),
		SensorIndex:      getEnv("AZURE_SEARCH_INDEX_SENSOR", "sensor-data-index"),
		OperatorIndex:    getEnv("AZURE_SEARCH_INDEX_OPERATOR", "operator-reports-index"),
		MaintenanceIndex: getEnv("AZURE_SEARCH_INDEX_MAINTENANCE", "maintenance-logs-index"),
		DatasetsDir:      getEnv("DATASETS_DIR", "datasets"),

		HistoryDSN: getEnv("HISTORY_DSN", ""),

		ReportsDir:         getEnv("REPORTS_DIR", "reports"),
		ReportsS3Bucket:    getEnv("REPORTS_S3_BUCKET", ""),
		ReportsS3Region:    getEnv("REPORTS_S3_REGION", "us-east-1"),
		ReportsS3Endpoint:  getEnv("REPORTS_S3_ENDPOINT", ""),
		ReportsS3PathStyle: getEnvBool("REPORTS_S3_PATH_STYLE", false),

		RateLimitCapacity: getEnvInt("RATE_LIMIT_CAPACITY", 30),
		RateLimitRefill:   getEnvFloat("RATE_LIMIT_REFILL_PER_SEC", 10),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
