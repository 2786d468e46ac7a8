package main

import (
	"os"
	"strconv"
	"time"
)

// AppConfig gathers every environment knob the server reads at boot.
type AppConfig struct {
	Port             string
	NATSURL          string
	SubjectPrefix    string
	OpenAIAPIKey     string
	DynamsoftLicense string

	// Blob storage: an S3 bucket when set, a local directory otherwise.
	S3Bucket string
	BlobDir  string

	// Quest category pool config file; empty means built-in defaults.
	CategoryConfigPath string

	// Attendee page scraping.
	AttendeeBaseURL      string
	AttendeeSessionToken string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int32
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Port:                 getEnv("PORT", "8080"),
		NATSURL:              getEnv("NATS_URL", "nats://localhost:4222"),
		SubjectPrefix:        getEnv("EVENT_SUBJECT_PREFIX", "karma"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		DynamsoftLicense:     os.Getenv("DYNAMSOFT_LICENSE"),
		S3Bucket:             os.Getenv("S3_BUCKET"),
		BlobDir:              getEnv("BLOB_DIR", "uploads"),
		CategoryConfigPath:   os.Getenv("CATEGORY_CONFIG"),
		AttendeeBaseURL:      getEnv("ATTENDEE_BASE_URL", "https://app.jamhacks.ca"),
		AttendeeSessionToken: os.Getenv("ATTENDEE_SESSION_TOKEN"),
		OutboxPollInterval:   time.Duration(getEnvAsInt("OUTBOX_POLL_INTERVAL_SECONDS", 5)) * time.Second,
		OutboxBatchSize:      int32(getEnvAsInt("OUTBOX_BATCH_SIZE", 100)),
	}
}
