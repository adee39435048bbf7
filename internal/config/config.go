package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"farewatch/internal/model"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	TripLengthDays   int           `mapstructure:"trip_length_days"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	Rates            model.RateTable
	Regions          map[string]RegionConfig
	Providers        map[string]ProviderConfig
	Database         DatabaseConfig
	Telegram         TelegramConfig
}

// RegionConfig defines one region's search: which providers to poll, the
// destination airports, the inclusive date window, and the price thresholds.
type RegionConfig struct {
	Providers    []string
	Destinations []string
	StartDate    string `mapstructure:"start_date"`
	EndDate      string `mapstructure:"end_date"`
	Thresholds   ThresholdConfig
}

// Window parses the region's inclusive date range.
func (r RegionConfig) Window() (model.DateWindow, error) {
	start, err := time.Parse(model.DateFormat, r.StartDate)
	if err != nil {
		return model.DateWindow{}, fmt.Errorf("parse start_date %q: %w", r.StartDate, err)
	}
	end, err := time.Parse(model.DateFormat, r.EndDate)
	if err != nil {
		return model.DateWindow{}, fmt.Errorf("parse end_date %q: %w", r.EndDate, err)
	}
	if end.Before(start) {
		return model.DateWindow{}, fmt.Errorf("end_date %s before start_date %s", r.EndDate, r.StartDate)
	}
	return model.DateWindow{Start: start, End: end}, nil
}

// ThresholdConfig defines the USD price boundaries for a region.
type ThresholdConfig struct {
	Store  float64
	Notify float64
	OneWay float64 `mapstructure:"one_way"`
}

// Set converts the config shape to the engine's threshold set.
func (t ThresholdConfig) Set() model.ThresholdSet {
	return model.ThresholdSet{Store: t.Store, Notify: t.Notify, OneWay: t.OneWay}
}

// ProviderConfig defines settings for a specific airline provider.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	WebURL  string `mapstructure:"web_url"`
	AuthURL string `mapstructure:"auth_url"`
	Origin  string
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// DSN builds a pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.DBName)
}

// TelegramConfig defines the notification channel credentials.
type TelegramConfig struct {
	Token  string
	ChatID string `mapstructure:"chat_id"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("trip_length_days", 14)
	viper.SetDefault("fetch_concurrency", 3)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	// viper lowercases every key it reads, including nested map keys, so
	// the rate table arrives as "eur_usd"/"ars_usd". Rate lookups use the
	// canonical uppercase pair names.
	rates := make(model.RateTable, len(config.Rates))
	for key, rate := range config.Rates {
		rates[strings.ToUpper(key)] = rate
	}
	config.Rates = rates
	return
}
