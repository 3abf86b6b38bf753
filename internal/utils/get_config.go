package utils

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const DefaultConfigPath = "config.yaml"

type Config struct {
	AppPort  string `yaml:"APP_PORT"`
	LogLevel string `yaml:"LOG_LEVEL"`

	// Database configuration
	DBUser     string `yaml:"DB_USER"`
	DBName     string `yaml:"DB_NAME"`
	DBPassword string `yaml:"DB_PASSWORD"`
	DBPort     string `yaml:"DB_PORT"`
	DBHost     string `yaml:"DB_HOST"`

	// Local state
	RedisAddr     string `yaml:"REDIS_ADDR"`
	RedisPassword string `yaml:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"REDIS_DB"`

	JWTSecret string `yaml:"JWT_SECRET"`

	// Mailing configuration
	AppURL           string `yaml:"APP_URL"`
	SMTPHost         string `yaml:"SMTP_HOST"`
	SMTPPort         string `yaml:"SMTP_PORT"`
	SMTPSenderName   string `yaml:"SMTP_SENDER_NAME"`
	SMTPAuthEmail    string `yaml:"SMTP_AUTH_EMAIL"`
	SMTPAuthPassword string `yaml:"SMTP_AUTH_PASSWORD"`

	// AWS S3 configuration
	AWSS3Bucket   string `yaml:"AWS_S3_BUCKET"`
	AWSS3Region   string `yaml:"AWS_S3_REGION"`
	AWSS3Endpoint string `yaml:"AWS_S3_ENDPOINT"`
	AWSAccessKey  string `yaml:"AWS_ACCESS_KEY"`
	AWSSecretKey  string `yaml:"AWS_SECRET_KEY"`

	// Gemini API configuration
	GeminiAPIKey string `yaml:"GEMINI_API_KEY"`
	GeminiModel  string `yaml:"GEMINI_MODEL"`

	// Policy knobs
	AITimeoutSeconds   int `yaml:"AI_TIMEOUT_SECONDS"`
	AIMaxAttempts      int `yaml:"AI_MAX_ATTEMPTS"`
	AIRetryBackoffMS   int `yaml:"AI_RETRY_BACKOFF_MS"`
	RecoveryGraceHours int `yaml:"RECOVERY_GRACE_HOURS"`
	SyncTimeoutSeconds int `yaml:"SYNC_TIMEOUT_SECONDS"`
	IdleEvictMinutes   int `yaml:"IDLE_EVICT_MINUTES"`
}

var config Config

func LoadConfig() {
	if err := LoadConfigFrom(DefaultConfigPath); err != nil {
		log.Printf("Error loading config: %s\n", err)
	}
}

// LoadConfigFrom replaces the active configuration with the YAML file at path.
func LoadConfigFrom(path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var next Config
	if err := yaml.Unmarshal(file, &next); err != nil {
		return err
	}
	config = next
	return nil
}

func GetConfig(key string) string {
	switch key {
	case "APP_PORT":
		return config.AppPort
	case "LOG_LEVEL":
		return config.LogLevel
	case "DB_USER":
		return config.DBUser
	case "DB_NAME":
		return config.DBName
	case "DB_PASSWORD":
		return config.DBPassword
	case "DB_PORT":
		return config.DBPort
	case "DB_HOST":
		return config.DBHost
	case "REDIS_ADDR":
		return config.RedisAddr
	case "REDIS_PASSWORD":
		return config.RedisPassword
	case "REDIS_DB":
		return strconv.Itoa(config.RedisDB)
	case "JWT_SECRET":
		return config.JWTSecret
	case "APP_URL":
		return config.AppURL
	case "SMTP_HOST":
		return config.SMTPHost
	case "SMTP_PORT":
		return config.SMTPPort
	case "SMTP_SENDER_NAME":
		return config.SMTPSenderName
	case "SMTP_AUTH_EMAIL":
		return config.SMTPAuthEmail
	case "SMTP_AUTH_PASSWORD":
		return config.SMTPAuthPassword
	case "AWS_S3_BUCKET":
		return config.AWSS3Bucket
	case "AWS_S3_REGION":
		return config.AWSS3Region
	case "AWS_S3_ENDPOINT":
		return config.AWSS3Endpoint
	case "AWS_ACCESS_KEY":
		return config.AWSAccessKey
	case "AWS_SECRET_KEY":
		return config.AWSSecretKey
	case "GEMINI_API_KEY":
		return config.GeminiAPIKey
	case "GEMINI_MODEL":
		return config.GeminiModel
	case "AI_TIMEOUT_SECONDS":
		return strconv.Itoa(config.AITimeoutSeconds)
	case "AI_MAX_ATTEMPTS":
		return strconv.Itoa(config.AIMaxAttempts)
	case "AI_RETRY_BACKOFF_MS":
		return strconv.Itoa(config.AIRetryBackoffMS)
	case "RECOVERY_GRACE_HOURS":
		return strconv.Itoa(config.RecoveryGraceHours)
	case "SYNC_TIMEOUT_SECONDS":
		return strconv.Itoa(config.SyncTimeoutSeconds)
	case "IDLE_EVICT_MINUTES":
		return strconv.Itoa(config.IdleEvictMinutes)
	default:
		return ""
	}
}

// GetConfigInt returns the integer value of key, or def when it is unset,
// zero or malformed.
func GetConfigInt(key string, def int) int {
	n, err := strconv.Atoi(GetConfig(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// GetConfigDuration reads key as a count of unit.
func GetConfigDuration(key string, unit time.Duration, def time.Duration) time.Duration {
	n := GetConfigInt(key, 0)
	if n == 0 {
		return def
	}
	return time.Duration(n) * unit
}
