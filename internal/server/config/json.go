package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/flagx"
	"github.com/jorenvermeersch/budget-api/internal/timex"
)

// JsonConfig mirrors Config for decoding. Pointer fields distinguish "absent"
// from an explicit zero, so only keys present in the file override.
type JsonConfig struct {
	HTTPAddr    *string `json:"http_addr"`
	GRPCAddr    *string `json:"grpc_addr"`
	DatabaseDSN *string `json:"database_dsn"`
	LogLevel    *string `json:"log_level"`

	JWTSecret   *string         `json:"jwt_secret"`
	JWTIssuer   *string         `json:"jwt_issuer"`
	JWTAudience *string         `json:"jwt_audience"`
	JWTValidity *timex.Duration `json:"jwt_validity"`

	ArgonMemory      *uint32 `json:"argon_memory_kib"`
	ArgonIterations  *uint32 `json:"argon_iterations"`
	ArgonParallelism *uint8  `json:"argon_parallelism"`
	ArgonSaltLength  *uint32 `json:"argon_salt_length"`
	ArgonKeyLength   *uint32 `json:"argon_key_length"`

	LockoutThreshold *int            `json:"lockout_threshold"`
	LockoutDuration  *timex.Duration `json:"lockout_duration"`

	ResetTokenValidity *timex.Duration `json:"reset_token_validity"`
	ResetURL           *string         `json:"reset_url"`

	TimingMinDelay *timex.Duration `json:"timing_min_delay"`
	TimingMaxDelay *timex.Duration `json:"timing_max_delay"`

	PasswordMinLength  *int            `json:"password_min_length"`
	PasswordMaxLength  *int            `json:"password_max_length"`
	PasswordMinScore   *int            `json:"password_min_score"`
	BreachCheckEnabled *bool           `json:"breach_check_enabled"`
	BreachCheckURL     *string         `json:"breach_check_url"`
	BreachCheckTimeout *timex.Duration `json:"breach_check_timeout"`

	MailAPIURL   *string         `json:"mail_api_url"`
	MailAPIKey   *string         `json:"mail_api_key"`
	MailFrom     *string         `json:"mail_from"`
	MailFromName *string         `json:"mail_from_name"`
	MailTimeout  *timex.Duration `json:"mail_timeout"`

	RedisAddr         *string         `json:"redis_addr"`
	RateLimitRequests *int            `json:"rate_limit_requests"`
	RateLimitWindow   *timex.Duration `json:"rate_limit_window"`

	CORSOrigins    []string `json:"cors_origins"`
	TrustedProxies []string `json:"trusted_proxies"`

	S3ArchiveEnabled *bool   `json:"s3_archive_enabled"`
	S3Bucket         *string `json:"s3_bucket"`
	S3Prefix         *string `json:"s3_prefix"`
	S3Region         *string `json:"s3_region"`
	S3BaseEndpoint   *string `json:"s3_base_endpoint"`
	S3AccessKey      *string `json:"s3_access_key"`
	S3SecretKey      *string `json:"s3_secret_key"`
}

// parseJson overlays the file named by -c/-config, if any. A missing or
// invalid file panics.
func parseJson(config *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	set(&config.HTTPAddr, c.HTTPAddr)
	set(&config.GRPCAddr, c.GRPCAddr)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.LogLevel, c.LogLevel)

	set(&config.JWTSecret, c.JWTSecret)
	set(&config.JWTIssuer, c.JWTIssuer)
	set(&config.JWTAudience, c.JWTAudience)
	setDuration(&config.JWTValidity, c.JWTValidity)

	set(&config.ArgonMemory, c.ArgonMemory)
	set(&config.ArgonIterations, c.ArgonIterations)
	set(&config.ArgonParallelism, c.ArgonParallelism)
	set(&config.ArgonSaltLength, c.ArgonSaltLength)
	set(&config.ArgonKeyLength, c.ArgonKeyLength)

	set(&config.LockoutThreshold, c.LockoutThreshold)
	setDuration(&config.LockoutDuration, c.LockoutDuration)

	setDuration(&config.ResetTokenValidity, c.ResetTokenValidity)
	set(&config.ResetURL, c.ResetURL)

	setDuration(&config.TimingMinDelay, c.TimingMinDelay)
	setDuration(&config.TimingMaxDelay, c.TimingMaxDelay)

	set(&config.PasswordMinLength, c.PasswordMinLength)
	set(&config.PasswordMaxLength, c.PasswordMaxLength)
	set(&config.PasswordMinScore, c.PasswordMinScore)
	set(&config.BreachCheckEnabled, c.BreachCheckEnabled)
	set(&config.BreachCheckURL, c.BreachCheckURL)
	setDuration(&config.BreachCheckTimeout, c.BreachCheckTimeout)

	set(&config.MailAPIURL, c.MailAPIURL)
	set(&config.MailAPIKey, c.MailAPIKey)
	set(&config.MailFrom, c.MailFrom)
	set(&config.MailFromName, c.MailFromName)
	setDuration(&config.MailTimeout, c.MailTimeout)

	set(&config.RedisAddr, c.RedisAddr)
	set(&config.RateLimitRequests, c.RateLimitRequests)
	setDuration(&config.RateLimitWindow, c.RateLimitWindow)

	if c.CORSOrigins != nil {
		config.CORSOrigins = c.CORSOrigins
	}
	if c.TrustedProxies != nil {
		config.TrustedProxies = c.TrustedProxies
	}

	set(&config.S3ArchiveEnabled, c.S3ArchiveEnabled)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Prefix, c.S3Prefix)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.S3AccessKey, c.S3AccessKey)
	set(&config.S3SecretKey, c.S3SecretKey)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}
