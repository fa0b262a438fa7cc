package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const devSecret = "dev-only-insecure-secret"

// Config is read from STOREFRONT_* environment variables, after an optional .env file.
type Config struct {
	Env              string        `envconfig:"ENV" default:"dev"`
	Port             string        `envconfig:"PORT" default:"8080"`
	Store            string        `envconfig:"STORE" default:"sqlite"`
	DBDSN            string        `envconfig:"DB_DSN" default:"storefront.db"`
	MongoURI         string        `envconfig:"MONGO_URI" default:"mongodb://localhost:27017/?replicaSet=rs0"`
	MongoDatabase    string        `envconfig:"MONGO_DATABASE" default:"storefront"`
	JWTSecret        string        `envconfig:"JWT_SECRET"`
	TokenTTL         time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFile          string        `envconfig:"LOG_FILE"`
	RedisAddr        string        `envconfig:"REDIS_ADDR"`
	KafkaBrokers     []string      `envconfig:"KAFKA_BROKERS"`
	KafkaTopicPrefix string        `envconfig:"KAFKA_TOPIC_PREFIX" default:"storefront"`
	BodyLimit        int           `envconfig:"BODY_LIMIT" default:"1048576"`
	SeedDemo         bool          `envconfig:"SEED_DEMO" default:"false"`
	AdminEmail       string        `envconfig:"ADMIN_EMAIL"`
	AdminPassword    string        `envconfig:"ADMIN_PASSWORD"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("storefront", &cfg); err != nil {
		return cfg, errors.Wrap(err, "read environment")
	}
	return cfg, cfg.Validate()
}

// Validate fills the dev secret and rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Store {
	case "sqlite", "mongo":
	default:
		return errors.Errorf("unknown store %q (want sqlite or mongo)", c.Store)
	}
	if c.JWTSecret == "" {
		if c.Env != "dev" {
			return errors.New("STOREFRONT_JWT_SECRET is required outside dev")
		}
		c.JWTSecret = devSecret
	}
	if c.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.BodyLimit <= 0 {
		c.BodyLimit = 1 << 20
	}
	return nil
}
