// Package config loads the service configuration from an optional YAML file
// and WATER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
	"github.com/LeonardoBeccarini/water-treatment/internal/services/persistence"
	"github.com/LeonardoBeccarini/water-treatment/pkg/rabbitmq"
)

// EnvPrefix prefixes every environment override: simulation.steps is WATER_SIMULATION_STEPS.
const EnvPrefix = "WATER"

type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Store      StoreConfig      `mapstructure:"store"`
	Rules      RulesConfig      `mapstructure:"rules"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Influx     InfluxConfig     `mapstructure:"influx"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
}

type SimulationConfig struct {
	Steps   int                  `mapstructure:"steps" validate:"min=1,max=1000000"`
	Seed    int64                `mapstructure:"seed"`
	Initial entities.Measurement `mapstructure:"initial"`
}

type StoreConfig struct {
	Path string `mapstructure:"path" validate:"required"`
	// Seed writes the default rules and ontology on startup.
	Seed bool `mapstructure:"seed"`
}

// RulesConfig selects a YAML rule file instead of the rules table.
type RulesConfig struct {
	File string `mapstructure:"file"`
}

type MQTTConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Host       string        `mapstructure:"host" validate:"required_if=Enabled true"`
	Port       int           `mapstructure:"port" validate:"min=1,max=65535"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	ClientID   string        `mapstructure:"client_id"`
	MaxRetries int           `mapstructure:"max_retries" validate:"min=0"`
	MaxElapsed time.Duration `mapstructure:"max_elapsed"`
}

type InfluxConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	URL             string        `mapstructure:"url" validate:"required_if=Enabled true"`
	Token           string        `mapstructure:"token"`
	Org             string        `mapstructure:"org" validate:"required_if=Enabled true"`
	Bucket          string        `mapstructure:"bucket" validate:"required_if=Enabled true"`
	BreakerFailures int           `mapstructure:"breaker_failures" validate:"min=1"`
	BreakerOpenFor  time.Duration `mapstructure:"breaker_open_for"`
}

type HTTPConfig struct {
	Addr        string `mapstructure:"addr" validate:"required"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("simulation.steps", 8)
	v.SetDefault("simulation.seed", 0)
	def := entities.DefaultMeasurement()
	v.SetDefault("simulation.initial.pollution_level", def.PollutionLevel)
	v.SetDefault("simulation.initial.water_flow", def.WaterFlow)
	v.SetDefault("simulation.initial.ph_level", def.PHLevel)
	v.SetDefault("simulation.initial.temperature", def.Temperature)
	v.SetDefault("simulation.initial.oxygen_level", def.OxygenLevel)

	v.SetDefault("store.path", "water_treatment.db")
	v.SetDefault("store.seed", true)
	v.SetDefault("rules.file", "")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.user", "guest")
	v.SetDefault("mqtt.password", "guest")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.max_retries", 5)
	v.SetDefault("mqtt.max_elapsed", "10s")

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "water")
	v.SetDefault("influx.bucket", "treatment")
	v.SetDefault("influx.breaker_failures", 3)
	v.SetDefault("influx.breaker_open_for", "30s")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.metrics_addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads path, or ./config.yaml when path is empty and the file exists,
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read config.yaml: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, formatFieldError(e))
			}
			return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Namespace())
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// RabbitMQ converts the MQTT section. An empty client id becomes the host
// name, then "water-treatment".
func (c MQTTConfig) RabbitMQ() *rabbitmq.RabbitMQConfig {
	id := c.ClientID
	if id == "" {
		id, _ = os.Hostname()
	}
	if id == "" {
		id = "water-treatment"
	}
	return &rabbitmq.RabbitMQConfig{
		Host:       c.Host,
		Port:       c.Port,
		User:       c.User,
		Password:   c.Password,
		ClientID:   id,
		MaxRetries: c.MaxRetries,
		MaxElapsed: c.MaxElapsed,
	}
}

func (c InfluxConfig) Persistence() persistence.InfluxConfig {
	return persistence.InfluxConfig{
		InfluxURL:       c.URL,
		InfluxToken:     c.Token,
		InfluxOrg:       c.Org,
		InfluxBucket:    c.Bucket,
		BreakerFailures: c.BreakerFailures,
		BreakerOpenFor:  c.BreakerOpenFor,
	}
}

// Build returns a production JSON logger, or a development console logger
// when Development is set.
func (c LogConfig) Build() (*zap.Logger, error) {
	var zc zap.Config
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	if c.Level != "" {
		lvl, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("config: log level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}
