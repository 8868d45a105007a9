// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// APIKeyConfig provides the shared key protecting operational endpoints.
type APIKeyConfig interface {
	GetAPIKey() string
}

// SchedulerConfig provides settings for the asynq worker and periodic jobs.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetJobLockTTL() time.Duration
}

// AIConfig provides settings for the LLM client.
type AIConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetAITimeout() time.Duration
	GetAIRequestsPerSecond() float64
	IsAIEnabled() bool
}

// EngagementConfig provides tuning knobs for the engagement engines.
type EngagementConfig interface {
	GetOutreachCooldownDays() int
	GetScanParallelism() int
	GetFinancePlanMonths() []int
	GetAppBaseURL() string
}

// MailConfig provides settings for SMTP delivery of staff alerts.
type MailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetEscalationAddress() string
	IsMailEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	APIKey string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	JobLockTTL       time.Duration

	GeminiAPIKey        string
	GeminiModel         string
	AITimeout           time.Duration
	AIRequestsPerSecond float64

	OutreachCooldownDays int
	ScanParallelism      int
	FinancePlanMonths    []int
	AppBaseURL           string

	// SentimentThresholdAtRisk is loaded for operational parity but no code
	// path reads it; risk scoring uses its own fixed sentiment bands.
	SentimentThresholdAtRisk float64

	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	EmailFromName     string
	EmailFromAddress  string
	EscalationAddress string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// APIKeyConfig implementation
func (c *Config) GetAPIKey() string { return c.APIKey }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string           { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool     { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string     { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int      { return c.AsynqConcurrency }
func (c *Config) GetJobLockTTL() time.Duration  { return c.JobLockTTL }

// AIConfig implementation
func (c *Config) GetGeminiAPIKey() string          { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string           { return c.GeminiModel }
func (c *Config) GetAITimeout() time.Duration      { return c.AITimeout }
func (c *Config) GetAIRequestsPerSecond() float64  { return c.AIRequestsPerSecond }
func (c *Config) IsAIEnabled() bool                { return c.GeminiAPIKey != "" }

// EngagementConfig implementation
func (c *Config) GetOutreachCooldownDays() int { return c.OutreachCooldownDays }
func (c *Config) GetScanParallelism() int      { return c.ScanParallelism }
func (c *Config) GetFinancePlanMonths() []int  { return c.FinancePlanMonths }
func (c *Config) GetAppBaseURL() string        { return c.AppBaseURL }

// MailConfig implementation
func (c *Config) GetSMTPHost() string          { return c.SMTPHost }
func (c *Config) GetSMTPPort() int             { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string      { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string      { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string     { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string  { return c.EmailFromAddress }
func (c *Config) GetEscalationAddress() string { return c.EscalationAddress }
func (c *Config) IsMailEnabled() bool {
	return c.SMTPHost != "" && c.EscalationAddress != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		APIKey: getEnv("API_KEY", ""),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "engagement"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		JobLockTTL:       mustDuration(getEnv("JOB_LOCK_TTL", "30m")),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		AITimeout:           mustDuration(getEnv("AI_TIMEOUT", "30s")),
		AIRequestsPerSecond: mustFloat(getEnv("AI_REQUESTS_PER_SECOND", "2")),

		OutreachCooldownDays: mustInt(getEnv("OUTREACH_COOLDOWN_DAYS", "14")),
		ScanParallelism:      mustInt(getEnv("SCAN_PARALLELISM", "4")),
		FinancePlanMonths:    splitInts(getEnv("FINANCE_PLAN_MONTHS", "12,24,36")),
		AppBaseURL:           getEnv("APP_BASE_URL", "http://localhost:8080"),

		SentimentThresholdAtRisk: mustFloat(getEnv("SENTIMENT_THRESHOLD_AT_RISK", "-0.3")),

		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "Bright Smile"),
		EmailFromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
		EscalationAddress: getEnv("ESCALATION_ADDRESS", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.OutreachCooldownDays < 1 {
		return nil, fmt.Errorf("OUTREACH_COOLDOWN_DAYS must be at least 1")
	}
	if len(cfg.FinancePlanMonths) == 0 {
		return nil, fmt.Errorf("FINANCE_PLAN_MONTHS must list at least one term")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func splitInts(value string) []int {
	parts := splitCSV(value)
	results := make([]int, 0, len(parts))
	for _, part := range parts {
		parsed, err := strconv.Atoi(part)
		if err != nil || parsed <= 0 {
			continue
		}
		results = append(results, parsed)
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
