package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"automart/internal/domain"
)

// Config holds every parameter of every mode; each mode reads the sections it needs.
type Config struct {
	App      AppConfig      `yaml:"app"`
	API      APIConfig      `yaml:"api"`
	Cart     CartConfig     `yaml:"cart"`
	User     UserConfig     `yaml:"user"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Storage  StorageConfig  `yaml:"storage"`
	Queue    QueueConfig    `yaml:"queue"`
	Locker   LockerConfig   `yaml:"locker"`
	Cache    CacheConfig    `yaml:"cache"`
	Sync     SyncConfig     `yaml:"sync"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
}

type AppConfig struct {
	Name          string `yaml:"name"`
	Version       string `yaml:"version"`
	Debug         bool   `yaml:"debug"`
	StoragePrefix string `yaml:"storage_prefix"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type CartConfig struct {
	MaxItems           int    `yaml:"max_items"`
	MaxQuantityPerItem int    `yaml:"max_quantity_per_item"`
	StorageKey         string `yaml:"storage_key"`
}

type UserConfig struct {
	DefaultName     string `yaml:"default_name"`
	DefaultLocation string `yaml:"default_location"`
	StorageKey      string `yaml:"storage_key"`
}

type CheckoutConfig struct {
	TimeSlots      []string               `yaml:"time_slots"`
	PaymentMethods []domain.PaymentMethod `yaml:"payment_methods"`
}

type CatalogConfig struct {
	File string `yaml:"file"` // empty = built-in sample catalog
}

// StorageConfig selects the key/value backend shared by the cart and preferences.
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory | redis
}

type QueueConfig struct {
	Driver string `yaml:"driver"` // memory | redis | postgres
}

type LockerConfig struct {
	Driver string `yaml:"driver"` // log | rabbitmq | mqtt | kafka

	// locker-agent side
	Queue     string        `yaml:"queue"`
	Lockers   []string      `yaml:"lockers"` // empty: every locker
	Prefetch  int           `yaml:"prefetch"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	Remember  int           `yaml:"remember"` // releases kept for redelivery dedupe
}

type CacheConfig struct {
	Driver           string   `yaml:"driver"` // memory | redis
	Version          string   `yaml:"version"`
	StaticName       string   `yaml:"static_name"`
	DynamicName      string   `yaml:"dynamic_name"`
	Upstream         string   `yaml:"upstream"`
	FallbackDocument string   `yaml:"fallback_document"`
	Manifest         []string `yaml:"manifest"`
	NoCache          []string `yaml:"no_cache"`
	StaticExtensions []string `yaml:"static_extensions"`
	StaticHosts      []string `yaml:"static_hosts"`
	APIPatterns      []string `yaml:"api_patterns"`
}

type SyncConfig struct {
	Tag           string        `yaml:"tag"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
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

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	UseTLS   bool   `yaml:"tls"`
	Exchange string `yaml:"exchange"`
}

type MQTTConfig struct {
	URL      string        `yaml:"url"`
	ClientID string        `yaml:"client_id"`
	QoS      byte          `yaml:"qos"`
	Timeout  time.Duration `yaml:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// Default mirrors the shop's built-in constants.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:          "AutoMart",
			Version:       "1.0.0",
			StoragePrefix: "automart_",
		},
		API: APIConfig{
			BaseURL: "http://localhost:3001",
			Timeout: 10 * time.Second,
		},
		Cart: CartConfig{
			MaxItems:           99,
			MaxQuantityPerItem: 10,
			StorageKey:         "cart_items",
		},
		User: UserConfig{
			DefaultName:     "Testbenutzer 1",
			DefaultLocation: "markt-xy",
			StorageKey:      "user_preferences",
		},
		Checkout: CheckoutConfig{
			TimeSlots: []string{
				"09:00 - 10:00 Uhr", "10:00 - 11:00 Uhr", "11:00 - 12:00 Uhr",
				"12:00 - 13:00 Uhr", "13:00 - 14:00 Uhr", "14:00 - 15:00 Uhr",
				"15:00 - 16:00 Uhr", "16:00 - 17:00 Uhr", "17:00 - 18:00 Uhr",
				"18:00 - 19:00 Uhr", "19:00 - 20:00 Uhr",
			},
			PaymentMethods: []domain.PaymentMethod{
				{ID: "bank355", Name: "Bankkonto 355", Icon: "fas fa-university"},
				{ID: "card1234", Name: "Kreditkarte ****1234", Icon: "fas fa-credit-card"},
				{ID: "paypal", Name: "PayPal", Icon: "fab fa-paypal"},
			},
		},
		Storage: StorageConfig{Driver: "memory"},
		Queue:   QueueConfig{Driver: "memory"},
		Locker: LockerConfig{
			Driver:    "log",
			Queue:     "locker_agent",
			Prefetch:  1,
			Heartbeat: 30 * time.Second,
			Remember:  1024,
		},
		Cache: CacheConfig{
			Driver:           "memory",
			Version:          "automart-v1.0.0",
			StaticName:       "automart-static-v1",
			DynamicName:      "automart-dynamic-v1",
			Upstream:         "http://localhost:3002",
			FallbackDocument: "/index.html",
			Manifest: []string{
				"/", "/index.html",
				"/css/style.css", "/css/components.css", "/css/responsive.css",
				"/js/config.js", "/js/api.js", "/js/cart.js", "/js/products.js", "/js/ui.js", "/js/app.js",
			},
			NoCache:          []string{"/api/", "analytics.google.com", "google-analytics.com"},
			StaticExtensions: []string{".css", ".js", ".png", ".jpg", ".jpeg", ".svg", ".woff", ".woff2", ".ico"},
			StaticHosts:      []string{"fonts.googleapis.com", "fonts.gstatic.com", "fontawesome"},
			APIPatterns:      []string{"/order/", "/orders", "/products", "/pickup/", "/locations"},
		},
		Sync: SyncConfig{
			Tag:           "background-sync-orders",
			ProbeInterval: 15 * time.Second,
			Heartbeat:     30 * time.Second,
		},
		Database: DatabaseConfig{
			Port:     5432,
			SSLMode:  "disable",
			MaxConns: 10,
		},
		RabbitMQ: RabbitMQConfig{
			Port:     5672,
			VHost:    "/",
			Exchange: "locker_commands",
		},
		MQTT: MQTTConfig{
			URL:      "tcp://localhost:1883",
			ClientID: "automart-order-service",
			QoS:      1,
			Timeout:  5 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "locker.commands",
		},
		Redis: RedisConfig{URL: "redis://localhost:6379/0"},
	}
}

// Load builds the config from defaults, an optional YAML file, an optional .env file
// and the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfig returns the first config file present in the usual places.
func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}

func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("API_BASE_URL", &cfg.API.BaseURL)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("QUEUE_DRIVER", &cfg.Queue.Driver)
	str("LOCKER_DRIVER", &cfg.Locker.Driver)
	str("CACHE_DRIVER", &cfg.Cache.Driver)
	str("CACHE_UPSTREAM", &cfg.Cache.Upstream)
	str("MQTT_URL", &cfg.MQTT.URL)
	str("REDIS_URL", &cfg.Redis.URL)
	str("DB_HOST", &cfg.Database.Host)
	num("DB_PORT", &cfg.Database.Port)
	str("DB_USER", &cfg.Database.User)
	str("DB_PASSWORD", &cfg.Database.Password)
	str("DB_NAME", &cfg.Database.Database)
	str("RABBITMQ_HOST", &cfg.RabbitMQ.Host)
	num("RABBITMQ_PORT", &cfg.RabbitMQ.Port)
	str("RABBITMQ_USER", &cfg.RabbitMQ.User)
	str("RABBITMQ_PASSWORD", &cfg.RabbitMQ.Password)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitCSV(v)
	}
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.App.Debug, _ = strconv.ParseBool(v)
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.Cart.MaxItems < 1 || c.Cart.MaxQuantityPerItem < 1 {
		return fmt.Errorf("invalid config: cart limits must be positive")
	}
	if c.Cart.MaxQuantityPerItem > c.Cart.MaxItems {
		return fmt.Errorf("invalid config: max_quantity_per_item exceeds max_items")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("invalid config: api timeout must be positive")
	}
	if err := oneOf("storage.driver", c.Storage.Driver, "memory", "redis"); err != nil {
		return err
	}
	if err := oneOf("cache.driver", c.Cache.Driver, "memory", "redis"); err != nil {
		return err
	}
	if err := oneOf("queue.driver", c.Queue.Driver, "memory", "redis", "postgres"); err != nil {
		return err
	}
	if err := oneOf("locker.driver", c.Locker.Driver, "log", "rabbitmq", "mqtt", "kafka"); err != nil {
		return err
	}
	if c.Queue.Driver == "postgres" && (c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "") {
		return fmt.Errorf("invalid config: database config incomplete")
	}
	if c.Locker.Driver == "rabbitmq" && (c.RabbitMQ.Host == "" || c.RabbitMQ.User == "") {
		return fmt.Errorf("invalid config: rabbitmq config incomplete")
	}
	if c.Locker.Driver == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("invalid config: kafka brokers missing")
	}
	if c.Cache.StaticName == "" || c.Cache.DynamicName == "" || c.Cache.StaticName == c.Cache.DynamicName {
		return fmt.Errorf("invalid config: cache partition names must be set and distinct")
	}
	return nil
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("invalid config: %s %q (want one of %s)", field, v, strings.Join(allowed, ", "))
}

// DSN renders the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}
