package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/jorenvermeersch/budget-api/internal/flagx"
)

const (
	envPrefix      = "BUDGET_"
	defaultEnvFile = ".env"
)

// parseEnv loads the .env file (from -env, or ./.env when present) without
// overriding variables that are already set, then reads BUDGET_* variables.
func parseEnv(config *Config) {
	path := flagx.EnvFileFlags()
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	envString(&config.HTTPAddr, "HTTP_ADDR")
	envString(&config.GRPCAddr, "GRPC_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.LogLevel, "LOG_LEVEL")

	envString(&config.JWTSecret, "JWT_SECRET")
	envString(&config.JWTIssuer, "JWT_ISSUER")
	envString(&config.JWTAudience, "JWT_AUDIENCE")
	envDuration(&config.JWTValidity, "JWT_VALIDITY")

	envInt(&config.LockoutThreshold, "LOCKOUT_THRESHOLD")
	envDuration(&config.LockoutDuration, "LOCKOUT_DURATION")

	envDuration(&config.ResetTokenValidity, "RESET_TOKEN_VALIDITY")
	envString(&config.ResetURL, "RESET_URL")

	envDuration(&config.TimingMinDelay, "TIMING_MIN_DELAY")
	envDuration(&config.TimingMaxDelay, "TIMING_MAX_DELAY")

	envInt(&config.PasswordMinScore, "PASSWORD_MIN_SCORE")
	envBool(&config.BreachCheckEnabled, "BREACH_CHECK_ENABLED")
	envString(&config.BreachCheckURL, "BREACH_CHECK_URL")

	envString(&config.MailAPIURL, "MAIL_API_URL")
	envString(&config.MailAPIKey, "MAIL_API_KEY")
	envString(&config.MailFrom, "MAIL_FROM")

	envString(&config.RedisAddr, "REDIS_ADDR")
	envInt(&config.RateLimitRequests, "RATE_LIMIT_REQUESTS")
	envDuration(&config.RateLimitWindow, "RATE_LIMIT_WINDOW")

	if v, ok := lookup("CORS_ORIGINS"); ok {
		config.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("TRUSTED_PROXIES"); ok {
		config.TrustedProxies = splitList(v)
	}

	envBool(&config.S3ArchiveEnabled, "S3_ARCHIVE_ENABLED")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envString(&config.S3AccessKey, "S3_ACCESS_KEY")
	envString(&config.S3SecretKey, "S3_SECRET_KEY")
}

func lookup(name string) (string, bool) {
	return os.LookupEnv(envPrefix + name)
}

func envString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func envInt(dst *int, name string) {
	if v, ok := lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		*dst = n
	}
}

func envBool(dst *bool, name string) {
	if v, ok := lookup(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		*dst = b
	}
}

func envDuration(dst *time.Duration, name string) {
	if v, ok := lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		*dst = d
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
