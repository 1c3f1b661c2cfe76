package config

import (
	"log/slog"
	"os"
	"strconv"
)

type Config struct {
	Limits     LimitsConfig
	Processing ProcessingConfig
	Output     OutputConfig
	Logging    LoggingConfig
	Security   SecurityConfig
}

// LimitsConfig bounds what one document may cost to process.
type LimitsConfig struct {
	MaxEntries   int // records per document, 0 = unlimited
	MaxEntrySize int // raw bytes per record, 0 = unlimited
}

type ProcessingConfig struct {
	Workers          int  // parallel workers for batch transforms
	StrictValidation bool // closed-world attribute checking
}

type OutputConfig struct {
	WrapWidth    int  // fold column; negative disables folding
	WriteVersion bool // open output with a version: 1 line
}

type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

type SecurityConfig struct {
	Argon2Config Argon2Config
}

type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func Load() *Config {
	cfg := &Config{
		Limits: LimitsConfig{
			MaxEntries:   getEnvInt("LDIF_MAX_ENTRIES", 0),
			MaxEntrySize: getEnvInt("LDIF_MAX_ENTRY_SIZE", 0),
		},
		Processing: ProcessingConfig{
			Workers:          getEnvInt("LDIF_WORKERS", 4),
			StrictValidation: getEnvBool("LDIF_STRICT_VALIDATION", false),
		},
		Output: OutputConfig{
			WrapWidth:    getEnvInt("LDIF_WRAP_WIDTH", 76),
			WriteVersion: getEnvBool("LDIF_WRITE_VERSION", false),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LDIF_LOG_LEVEL", "info"),
			Format: getEnvString("LDIF_LOG_FORMAT", "text"),
		},
		Security: SecurityConfig{
			Argon2Config: Argon2Config{
				Memory:      uint32(getEnvInt("LDIF_ARGON2_MEMORY", 65536)),
				Iterations:  uint32(getEnvInt("LDIF_ARGON2_ITERATIONS", 3)),
				Parallelism: uint8(getEnvInt("LDIF_ARGON2_PARALLELISM", 2)),
				SaltLength:  uint32(getEnvInt("LDIF_ARGON2_SALT_LENGTH", 16)),
				KeyLength:   uint32(getEnvInt("LDIF_ARGON2_KEY_LENGTH", 32)),
			},
		},
	}

	if cfg.Processing.Workers < 1 {
		cfg.Processing.Workers = 1
	}

	return cfg
}

func (c *Config) Print() {
	slog.Info("Configuration loaded",
		"max_entries", c.Limits.MaxEntries,
		"max_entry_size", c.Limits.MaxEntrySize,
		"workers", c.Processing.Workers,
		"strict_validation", c.Processing.StrictValidation,
		"wrap_width", c.Output.WrapWidth,
		"write_version", c.Output.WriteVersion,
		"log_level", c.Logging.Level,
		"log_format", c.Logging.Format,
	)
}

// SlogLevel maps the configured level name onto a slog level, defaulting
// to info for anything unrecognized.
func (c *Config) SlogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
