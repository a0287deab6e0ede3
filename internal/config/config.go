package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed greetings.yaml
var greetingsYAML []byte

type Config struct {
	Match     MatchConfig
	Throttle  ThrottleConfig
	Windows   WindowsConfig
	Greetings GreetingsConfig
	Embedder  EmbedderConfig
	Database  DatabaseConfig
	Snapshot  SnapshotConfig
	Web       WebConfig
}

type MatchConfig struct {
	Tolerance      float64 // maximum embedding distance for a match (default 0.6)
	IndexThreshold int     // roster size at which the HNSW prefilter kicks in (default 256)
}

type ThrottleConfig struct {
	Cooldown time.Duration // minimum interval between ledger writes per identity (default 5m)
}

type WindowsConfig struct {
	Morning   string // "HH:MM-HH:MM", inclusive start, exclusive end
	Afternoon string // end < start means the window wraps past midnight
}

type GreetingsConfig struct {
	Arrival   string `yaml:"arrival"`
	Departure string `yaml:"departure"`
}

type EmbedderConfig struct {
	URL string // detect-and-embed service (e.g. http://localhost:8000)
	Dim int    // embedding dimensionality, fixed by the embedder (default 128)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MariaDBDSN   string // alternative MariaDB backend DSN (used when URL is empty)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type SnapshotConfig struct {
	Dir string // base directory for face crops and window screenshots
}

type WebConfig struct {
	Host string
	Port int
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a time.Duration ("5m", "30s").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var embedded struct {
		Greetings GreetingsConfig `yaml:"greetings"`
	}
	if err := yaml.Unmarshal(greetingsYAML, &embedded); err != nil {
		// Embedded file, should never happen in practice.
		panic("failed to unmarshal embedded greetings.yaml: " + err.Error())
	}

	return &Config{
		Match: MatchConfig{
			Tolerance:      envFloat("MATCH_TOLERANCE", 0.6),
			IndexThreshold: envInt("MATCH_INDEX_THRESHOLD", 256),
		},
		Throttle: ThrottleConfig{
			Cooldown: envDuration("COOLDOWN", 5*time.Minute),
		},
		Windows: WindowsConfig{
			Morning:   envString("MORNING_WINDOW", "07:30-12:00"),
			Afternoon: envString("AFTERNOON_WINDOW", "14:00-18:00"),
		},
		Greetings: GreetingsConfig{
			Arrival:   envString("GREETING_ARRIVAL", embedded.Greetings.Arrival),
			Departure: envString("GREETING_DEPARTURE", embedded.Greetings.Departure),
		},
		Embedder: EmbedderConfig{
			URL: os.Getenv("EMBEDDER_URL"),
			Dim: envInt("EMBEDDING_DIM", 128),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MariaDBDSN:   os.Getenv("MARIADB_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Snapshot: SnapshotConfig{
			Dir: envString("SNAPSHOT_DIR", "data"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
	}
}
