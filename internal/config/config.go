package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone  AuthMode = "none"  // Single implicit user, no login
	AuthModeLocal AuthMode = "local" // Local user database with sessions (default)
)

type (
	Config struct {
		HTTP
		Global
		Database
		Log
		Import
		GoogleBooks
		Tasks
		Scheduler
		Auth
		Audit
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Log struct {
		Level  string
		Format string // json or console
	}
	Import struct {
		Workers     int           // Rows processed concurrently; 1 keeps file order
		MaxFileSize int64         // Upload limit in bytes
		RowTimeout  time.Duration // Upper bound for one row incl. enrichment
		Enrich      bool          // Call Google Books for newly created books
	}
	GoogleBooks struct {
		BaseURL           string
		APIKey            string
		Language          string
		MaxResults        int
		RequestsPerSecond float64
		Timeout           time.Duration
		BreakerFailures   uint32        // Consecutive failures before the breaker opens
		BreakerTimeout    time.Duration // How long the breaker stays open
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Scheduler struct {
		MetadataBackfillEnabled  bool
		MetadataBackfillSchedule string // Cron format: "0 3 * * *" = daily at 03:00
		AuditCleanupSchedule     string
	}
	Auth struct {
		Mode            AuthMode
		SessionSecret   string
		SessionLifetime time.Duration
		TokenExpiry     time.Duration
		BcryptCost      int
		SecureCookies   bool   // Set to false for local dev without HTTPS
		DefaultUsername string // Implicit user when Mode is none
		MaxFailedLogins int
		LockoutDuration time.Duration
	}
	Audit struct {
		RetentionDays int
	}
)

// loadDotEnv reads .env from the working directory if it exists.
// Variables already present in the environment win.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func NewConfig() *Config {
	_ = loadDotEnv()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// Import defaults
	v.SetDefault("import_workers", 1)
	v.SetDefault("import_max_file_size", DefaultMaxImportFileSize)
	v.SetDefault("import_row_timeout", "30s")
	v.SetDefault("import_enrich", true)

	// Google Books defaults
	v.SetDefault("google_books_base_url", DefaultGoogleBooksURL)
	v.SetDefault("google_books_api_key", "")
	v.SetDefault("google_books_language", "fr")
	v.SetDefault("google_books_max_results", 3)
	v.SetDefault("google_books_requests_per_second", 2.0)
	v.SetDefault("google_books_timeout", "10s")
	v.SetDefault("google_books_breaker_failures", 5)
	v.SetDefault("google_books_breaker_timeout", "1m")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "30m")
	v.SetDefault("task_release_after", "45m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	// Scheduler defaults
	v.SetDefault("metadata_backfill_enabled", false)
	v.SetDefault("metadata_backfill_schedule", "0 3 * * *")
	v.SetDefault("audit_cleanup_schedule", "30 4 * * *")

	// Auth defaults
	v.SetDefault("auth_mode", string(AuthModeLocal))
	v.SetDefault("auth_session_secret", "")      // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h") // 24 hours
	v.SetDefault("auth_token_expiry", "720h")    // 30 days
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_default_username", "reader")
	v.SetDefault("auth_max_failed_logins", 5)
	v.SetDefault("auth_lockout_duration", "30m")

	v.SetDefault("audit_retention_days", 90)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Import: Import{
			Workers:     v.GetInt("IMPORT_WORKERS"),
			MaxFileSize: v.GetInt64("IMPORT_MAX_FILE_SIZE"),
			RowTimeout:  v.GetDuration("IMPORT_ROW_TIMEOUT"),
			Enrich:      v.GetBool("IMPORT_ENRICH"),
		},
		GoogleBooks: GoogleBooks{
			BaseURL:           v.GetString("GOOGLE_BOOKS_BASE_URL"),
			APIKey:            v.GetString("GOOGLE_BOOKS_API_KEY"),
			Language:          v.GetString("GOOGLE_BOOKS_LANGUAGE"),
			MaxResults:        v.GetInt("GOOGLE_BOOKS_MAX_RESULTS"),
			RequestsPerSecond: v.GetFloat64("GOOGLE_BOOKS_REQUESTS_PER_SECOND"),
			Timeout:           v.GetDuration("GOOGLE_BOOKS_TIMEOUT"),
			BreakerFailures:   v.GetUint32("GOOGLE_BOOKS_BREAKER_FAILURES"),
			BreakerTimeout:    v.GetDuration("GOOGLE_BOOKS_BREAKER_TIMEOUT"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Scheduler: Scheduler{
			MetadataBackfillEnabled:  v.GetBool("METADATA_BACKFILL_ENABLED"),
			MetadataBackfillSchedule: v.GetString("METADATA_BACKFILL_SCHEDULE"),
			AuditCleanupSchedule:     v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Auth: Auth{
			Mode:            AuthMode(v.GetString("AUTH_MODE")),
			SessionSecret:   v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime: v.GetDuration("AUTH_SESSION_LIFETIME"),
			TokenExpiry:     v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:      v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:   v.GetBool("AUTH_SECURE_COOKIES"),
			DefaultUsername: v.GetString("AUTH_DEFAULT_USERNAME"),
			MaxFailedLogins: v.GetInt("AUTH_MAX_FAILED_LOGINS"),
			LockoutDuration: v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
	}
}
