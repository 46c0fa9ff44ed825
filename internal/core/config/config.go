package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`
	// RequestTimeoutSeconds bounds every store call made on behalf of a request.
	RequestTimeoutSeconds int `mapstructure:"REQUEST_TIMEOUT_SECONDS" default:"10"`

	// Mongo holds the document database configuration.
	Mongo MongoConfig `mapstructure:",squash"`

	// Redis holds the cart and idempotency store configuration.
	Redis RedisConfig `mapstructure:",squash"`

	// Auth holds the bearer token verification settings.
	Auth AuthConfig `mapstructure:",squash"`

	// Orders holds order lifecycle tuning.
	Orders OrdersConfig `mapstructure:",squash"`

	// Kafka holds the order event stream configuration.
	Kafka KafkaConfig `mapstructure:",squash"`
}

// MongoConfig holds MongoDB connection details.
type MongoConfig struct {
	// URI is the MongoDB connection string.
	URI string `mapstructure:"MONGO_URI" required:"true"`
	// Database is the database holding the orders collection.
	Database string `mapstructure:"MONGO_DATABASE" default:"storefront"`
	// OrdersCollection is the name of the orders collection.
	OrdersCollection string `mapstructure:"MONGO_ORDERS_COLLECTION" default:"orders"`
}

// RedisConfig holds Redis connection details.
type RedisConfig struct {
	// URL is in the format redis://[:password@]host[:port][/database].
	URL string `mapstructure:"REDIS_URL" required:"true"`
	// CartKeyPrefix prefixes the per-user cart document key.
	CartKeyPrefix string `mapstructure:"CART_KEY_PREFIX" default:"cart:user:"`
	// IdempotencyTTLSeconds is how long a creation idempotency key is remembered.
	IdempotencyTTLSeconds int `mapstructure:"IDEMPOTENCY_TTL_SECONDS" default:"86400"`
}

// AuthConfig holds the JWT verification secret.
type AuthConfig struct {
	// JWTSecret is the HMAC secret shared with the auth service.
	JWTSecret string `mapstructure:"JWT_SECRET" required:"true"`
}

// OrdersConfig holds order lifecycle tuning.
type OrdersConfig struct {
	// CreateAttempts bounds retries when a generated public id collides.
	CreateAttempts int `mapstructure:"ORDER_CREATE_ATTEMPTS" default:"3"`
	// UpdateAttempts bounds retries when a concurrent writer bumps the order version.
	UpdateAttempts int `mapstructure:"ORDER_UPDATE_ATTEMPTS" default:"3"`
}

// KafkaConfig holds the order event stream settings.
type KafkaConfig struct {
	// Brokers is a comma separated broker list. Empty disables Kafka publishing.
	Brokers string `mapstructure:"KAFKA_BROKERS"`
	// OrderTopic receives order lifecycle events.
	OrderTopic string `mapstructure:"KAFKA_ORDER_TOPIC" default:"order.events"`
}

// BrokerList splits the configured brokers, dropping blanks.
func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// RequestTimeout returns the per-request store deadline.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// IdempotencyTTL returns how long creation keys are retained.
func (r RedisConfig) IdempotencyTTL() time.Duration {
	return time.Duration(r.IdempotencyTTLSeconds) * time.Second
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// processTags binds every tagged key to the environment and registers its default.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			if err := v.BindEnv(key); err != nil {
				return fmt.Errorf("failed to bind %s: %w", key, err)
			}
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		if field.Tag.Get("required") == "true" && isZero(val.Field(i)) {
			return fmt.Errorf("missing required configuration: %s", field.Tag.Get("mapstructure"))
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
