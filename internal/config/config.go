package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" validate:"required"`
	LogLevel        string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
	RunInterval     time.Duration `env:"RUN_INTERVAL" validate:"min=0"`

	// Scraped sources.
	Sources         Sources       `env:"SOURCES_FILE"`
	StationsEnabled bool          `env:"STATIONS_ENABLED"`
	ScrapeTimeout   time.Duration `env:"SCRAPE_TIMEOUT" validate:"gt=0"`
	ScrapeUserAgent string        `env:"SCRAPE_USER_AGENT" validate:"required"`

	// OpenWeather enrichment configuration.
	WeatherAPIKey         string        `env:"OPENWEATHER_API_KEY"`
	WeatherEnabled        bool          `env:"WEATHER_ENABLED"`
	WeatherBaseURL        string        `env:"WEATHER_BASE_URL" validate:"required,url"`
	WeatherUnits          string        `env:"WEATHER_UNITS" validate:"omitempty,oneof=standard metric imperial"`
	WeatherTimeout        time.Duration `env:"WEATHER_TIMEOUT" validate:"gt=0"`
	WeatherBreakerTimeout time.Duration `env:"WEATHER_BREAKER_TIMEOUT" validate:"gt=0"`
	WeatherCacheSize      int           `env:"WEATHER_CACHE_SIZE" validate:"min=1"`
	WeatherCacheTTL       time.Duration `env:"WEATHER_CACHE_TTL" validate:"gt=0"`
	EnrichConcurrency     int           `env:"ENRICH_CONCURRENCY" validate:"min=1,max=64"`

	// Sinks.
	ConsoleEnabled     bool     `env:"CONSOLE_ENABLED"`
	ConsoleFormat      string   `env:"CONSOLE_FORMAT" validate:"oneof=text json"`
	ConsoleWeatherOnly bool     `env:"CONSOLE_WEATHER_ONLY"`
	DBDriver           string   `env:"DB_DRIVER" validate:"omitempty,oneof=postgres sqlite"`
	DatabaseURL        string   `env:"DATABASE_URL" validate:"required_with=DBDriver"`
	DBTable            string   `env:"DB_TABLE" validate:"required"`
	KafkaBrokers       []string `env:"KAFKA_BROKERS"`
	KafkaTopic         string   `env:"KAFKA_TOPIC" validate:"required"`
}

// Load reads configuration from environment variables, applying defaults where unset.
// Source URLs come from built-in defaults, then SOURCES_FILE, then the
// POPULATION_URL / GEO_URLS / STATION_URLS variables.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	sources := DefaultSources()
	if path := os.Getenv("SOURCES_FILE"); path != "" {
		sources, err = LoadSources(path)
		if err != nil {
			return nil, fmt.Errorf("invalid SOURCES_FILE: %w", err)
		}
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),
		ShutdownTimeout: shutdownTimeout,

		Sources:         sources.withEnvOverrides(),
		ScrapeUserAgent: sharedcfg.EnvOrDefault("SCRAPE_USER_AGENT", "city-data-etl/1.0"),

		WeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		WeatherBaseURL: sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5/weather"),
		WeatherUnits:   strings.ToLower(os.Getenv("WEATHER_UNITS")),

		ConsoleFormat: strings.ToLower(sharedcfg.EnvOrDefault("CONSOLE_FORMAT", "text")),
		DBDriver:      strings.ToLower(os.Getenv("DB_DRIVER")),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBTable:       sharedcfg.EnvOrDefault("DB_TABLE", "cities"),
		KafkaBrokers:  sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:    sharedcfg.EnvOrDefault("KAFKA_TOPIC", "city-records"),
	}

	if cfg.RunInterval, err = parseDuration("RUN_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.ScrapeTimeout, err = parseDuration("SCRAPE_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.WeatherTimeout, err = parseDuration("WEATHER_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.WeatherBreakerTimeout, err = parseDuration("WEATHER_BREAKER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.WeatherCacheTTL, err = parseDuration("WEATHER_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WeatherCacheSize, err = parseInt("WEATHER_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.EnrichConcurrency, err = parseInt("ENRICH_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.StationsEnabled, err = parseBool("STATIONS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.ConsoleEnabled, err = parseBool("CONSOLE_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.ConsoleWeatherOnly, err = parseBool("CONSOLE_WEATHER_ONLY", false); err != nil {
		return nil, err
	}
	// Weather enrichment defaults to on when an API key is present.
	if cfg.WeatherEnabled, err = parseBool("WEATHER_ENABLED", cfg.WeatherAPIKey != ""); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	if cfg.WeatherEnabled && cfg.WeatherAPIKey == "" {
		return nil, errors.New("WEATHER_ENABLED is true but OPENWEATHER_API_KEY is not set")
	}
	if cfg.StationsEnabled && len(cfg.Sources.StationURLs) == 0 {
		return nil, errors.New("STATIONS_ENABLED is true but STATION_URLS is empty")
	}

	return cfg, nil
}

// KafkaEnabled reports whether the Kafka sink is configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// DatabaseEnabled reports whether the relational sink is configured.
func (c *Config) DatabaseEnabled() bool { return c.DBDriver != "" }

var validate = newValidator()

// newValidator returns a struct validator that reports fields by their env var name.
func newValidator() func(any) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return func(s any) error {
		err := v.Struct(s)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q check", fe.Field(), fe.Tag())
		}
		return err
	}
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

// parseList splits a comma-separated value, dropping empty entries.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
