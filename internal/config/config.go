package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAvatarURL is assigned to every newly provisioned user.
const DefaultAvatarURL = "https://cdn.pixabay.com/photo/2016/08/08/09/17/avatar-1577909_1280.png"

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string

	DynamoTables DynamoTables
	S3BucketName string
	PresignTTL   time.Duration

	// MaxUploadBytes caps one staging request body.
	MaxUploadBytes int64
	StagingIdleTTL time.Duration

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	SessionTTL        time.Duration
	SessionCookieName string

	OTPTTL         time.Duration
	OTPMaxAttempts int

	// StrictLookup aborts signup when the existing-user lookup fails instead of
	// treating the failure as "no such user".
	StrictLookup     bool
	DefaultAvatarURL string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSTopicARN    string
	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users       string
	UserEmails  string
	EmailTokens string
	Sessions    string
	Files       string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:       getEnv("DYNAMO_TABLE_USERS", "users"),
			UserEmails:  getEnv("DYNAMO_TABLE_USER_EMAILS", "user_emails"),
			EmailTokens: getEnv("DYNAMO_TABLE_EMAIL_TOKENS", "email_tokens"),
			Sessions:    getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Files:       getEnv("DYNAMO_TABLE_FILES", "files"),
		},
		S3BucketName:      getEnv("S3_BUCKET_NAME", "juststore-files"),
		PresignTTL:        time.Duration(getEnvInt("PRESIGN_TTL_MINUTES", 15)) * time.Minute,
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_MB", 50)) << 20,
		StagingIdleTTL:    time.Duration(getEnvInt("STAGING_IDLE_TTL_MINUTES", 60)) * time.Minute,
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		SessionTTL:        time.Duration(getEnvInt("SESSION_TTL_DAYS", 365)) * 24 * time.Hour,
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "appwrite-session"),
		OTPTTL:            time.Duration(getEnvInt("OTP_TTL_MINUTES", 15)) * time.Minute,
		OTPMaxAttempts:    getEnvInt("OTP_MAX_ATTEMPTS", 5),
		StrictLookup:      getEnvBool("ACCOUNT_LOOKUP_STRICT", true),
		DefaultAvatarURL:  getEnv("DEFAULT_AVATAR_URL", DefaultAvatarURL),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "1025"),
		SMTPFrom:          getEnv("SMTP_FROM", "noreply@juststore.app"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SNSTopicARN:       getEnv("SNS_TOPIC_ARN", ""),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
	}
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
