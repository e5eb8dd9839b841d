package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config хранит все параметры приложения
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Notify   NotifyConfig   `yaml:"notify"`
	Push     PushConfig     `yaml:"push"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

// Enabled: RabbitMQ is optional, the integration feed is off when Host is empty.
type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	UseTLS   bool   `yaml:"tls"`
}

func (r RabbitMQConfig) Enabled() bool { return r.Host != "" }

type ServerConfig struct {
	Port            int           `yaml:"port"`
	Store           string        `yaml:"store"` // postgres | memory
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type PushPolicy string

const (
	PushOnlyWhenOffline PushPolicy = "fallback"
	PushAlways          PushPolicy = "always"
)

type NotifyConfig struct {
	PushPolicy   PushPolicy    `yaml:"push_policy"`
	QueueSize    int           `yaml:"queue_size"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
	AuthTimeout  time.Duration `yaml:"auth_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

// PushConfig holds the VAPID identity. Push is disabled when keys are empty.
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
	TTL             int    `yaml:"ttl"`
}

func (p PushConfig) Enabled() bool { return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != "" }

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func Default() Config {
	return Config{
		Database: DatabaseConfig{Port: 5432, SSLMode: "disable", MaxConns: 10},
		RabbitMQ: RabbitMQConfig{Port: 5672, VHost: "/"},
		Server:   ServerConfig{Port: 3000, Store: "postgres", ShutdownTimeout: 5 * time.Second},
		Notify: NotifyConfig{
			PushPolicy:   PushOnlyWhenOffline,
			QueueSize:    256,
			SendTimeout:  2 * time.Second,
			AuthTimeout:  5 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Push: PushConfig{Subscriber: "mailto:suporte@mercadinho.local", TTL: 3600},
		Log:  LogConfig{Level: "info", JSON: true},
	}
}

// Load reads .env files, the YAML file at path (optional when empty or missing),
// GROCERY_* environment overrides and finally overrides (CLI flags), in that order of
// increasing precedence.
func Load(path string, overrides ...func(*Config)) (Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("invalid config: auth.jwt_secret is required")
	}
	switch c.Server.Store {
	case "memory":
	case "postgres":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
			return errors.New("invalid config: database host/user/database required for postgres store")
		}
	default:
		return fmt.Errorf("invalid config: unknown server.store %q", c.Server.Store)
	}
	switch c.Notify.PushPolicy {
	case PushOnlyWhenOffline, PushAlways:
	default:
		return fmt.Errorf("invalid config: unknown notify.push_policy %q", c.Notify.PushPolicy)
	}
	if c.Notify.QueueSize <= 0 {
		return errors.New("invalid config: notify.queue_size must be positive")
	}
	return nil
}

// DSN builds a pgx connection string.
func (d DatabaseConfig) DSN() string {
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	q.Set("pool_max_conns", strconv.Itoa(d.MaxConns))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func applyEnv(c *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv("GROCERY_" + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv("GROCERY_" + key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv("GROCERY_" + key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	flag := func(key string, dst *bool) {
		switch strings.ToLower(os.Getenv("GROCERY_" + key)) {
		case "1", "true", "yes":
			*dst = true
		case "0", "false", "no":
			*dst = false
		}
	}

	str("DB_HOST", &c.Database.Host)
	num("DB_PORT", &c.Database.Port)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Database)
	str("DB_SSLMODE", &c.Database.SSLMode)
	str("RABBITMQ_HOST", &c.RabbitMQ.Host)
	num("RABBITMQ_PORT", &c.RabbitMQ.Port)
	str("RABBITMQ_USER", &c.RabbitMQ.User)
	str("RABBITMQ_PASSWORD", &c.RabbitMQ.Password)
	str("RABBITMQ_VHOST", &c.RabbitMQ.VHost)
	num("PORT", &c.Server.Port)
	str("STORE", &c.Server.Store)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("PUSH_POLICY", (*string)(&c.Notify.PushPolicy))
	num("QUEUE_SIZE", &c.Notify.QueueSize)
	dur("SEND_TIMEOUT", &c.Notify.SendTimeout)
	dur("AUTH_TIMEOUT", &c.Notify.AuthTimeout)
	str("VAPID_PUBLIC_KEY", &c.Push.VAPIDPublicKey)
	str("VAPID_PRIVATE_KEY", &c.Push.VAPIDPrivateKey)
	str("VAPID_SUBSCRIBER", &c.Push.Subscriber)
	str("LOG_LEVEL", &c.Log.Level)
	flag("LOG_JSON", &c.Log.JSON)
}
