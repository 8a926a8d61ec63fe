package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Firebase  FirebaseConfig
	Auth      AuthConfig
	Relay     RelayConfig
	Blob      BlobConfig
	RateLimit RateLimitConfig
	WebSocket WebSocketConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
}

// StoreConfig picks the persistence backend: memory, gorm or firestore.
// memory serializes every transaction on one lock and is refused outside development.
type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
}

// AuthConfig selects how bearer tokens are verified: firebase, hmac or jwks.
type AuthConfig struct {
	Mode     string
	Secret   string
	JWKSURL  string
	TokenTTL time.Duration
}

type RelayConfig struct {
	Driver string
	Redis  RedisConfig
	Kafka  KafkaConfig
}

type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers    string
	Topic      string
	GroupID    string
	Partitions int
}

type BlobConfig struct {
	Driver          string
	Bucket          string
	Region          string
	Endpoint        string
	Dir             string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type WebSocketConfig struct {
	SendBuffer     int
	ReadLimit      int64
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// Load reads .env, then an optional config.yaml, then the environment.
// Keys map to env vars with dots replaced by underscores, e.g. RELAY_REDIS_ADDRESS.
func Load() (*Config, error) {
	godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate keeps the single-lock memory store out of anything but development.
func (c *Config) validate() error {
	if c.Store.Driver == "memory" && !c.IsDevelopment() {
		return fmt.Errorf("store.driver memory is development only, got environment %q", c.Server.Environment)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", "memory")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "tradezone.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.credentials_file", "")
	v.SetDefault("firebase.credentials_json", "")

	v.SetDefault("auth.mode", "hmac")
	v.SetDefault("auth.secret", "your-secret-key")
	v.SetDefault("auth.jwks_url", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("relay.driver", "local")
	v.SetDefault("relay.redis.address", "localhost:6379")
	v.SetDefault("relay.redis.password", "")
	v.SetDefault("relay.redis.db", 0)
	v.SetDefault("relay.redis.pool_size", 10)
	v.SetDefault("relay.redis.read_timeout", 3*time.Second)
	v.SetDefault("relay.redis.write_timeout", 3*time.Second)
	v.SetDefault("relay.kafka.brokers", "localhost:9092")
	v.SetDefault("relay.kafka.topic", "tradezone.broadcast")
	v.SetDefault("relay.kafka.group_id", "")
	v.SetDefault("relay.kafka.partitions", 3)

	v.SetDefault("blob.driver", "local")
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.region", "us-east-1")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.dir", "./data/blobs")

	v.SetDefault("ratelimit.requests_per_second", 20.0)
	v.SetDefault("ratelimit.burst", 40)

	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.read_limit", 64*1024)
	v.SetDefault("websocket.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			Environment:     v.GetString("server.environment"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("store.driver")),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       v.GetString("firebase.project_id"),
			CredentialsFile: v.GetString("firebase.credentials_file"),
			CredentialsJSON: v.GetString("firebase.credentials_json"),
		},
		Auth: AuthConfig{
			Mode:     strings.ToLower(v.GetString("auth.mode")),
			Secret:   v.GetString("auth.secret"),
			JWKSURL:  v.GetString("auth.jwks_url"),
			TokenTTL: v.GetDuration("auth.token_ttl"),
		},
		Relay: RelayConfig{
			Driver: strings.ToLower(v.GetString("relay.driver")),
			Redis: RedisConfig{
				Address:      v.GetString("relay.redis.address"),
				Password:     v.GetString("relay.redis.password"),
				DB:           v.GetInt("relay.redis.db"),
				PoolSize:     v.GetInt("relay.redis.pool_size"),
				ReadTimeout:  v.GetDuration("relay.redis.read_timeout"),
				WriteTimeout: v.GetDuration("relay.redis.write_timeout"),
			},
			Kafka: KafkaConfig{
				Brokers:    v.GetString("relay.kafka.brokers"),
				Topic:      v.GetString("relay.kafka.topic"),
				GroupID:    v.GetString("relay.kafka.group_id"),
				Partitions: v.GetInt("relay.kafka.partitions"),
			},
		},
		Blob: BlobConfig{
			Driver:   strings.ToLower(v.GetString("blob.driver")),
			Bucket:   v.GetString("blob.bucket"),
			Region:   v.GetString("blob.region"),
			Endpoint: v.GetString("blob.endpoint"),
			Dir:      v.GetString("blob.dir"),

			AccessKeyID:     v.GetString("blob.access_key_id"),
			SecretAccessKey: v.GetString("blob.secret_access_key"),
			UsePathStyle:    v.GetBool("blob.use_path_style"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("ratelimit.requests_per_second"),
			Burst:             v.GetInt("ratelimit.burst"),
		},
		WebSocket: WebSocketConfig{
			SendBuffer:     v.GetInt("websocket.send_buffer"),
			ReadLimit:      v.GetInt64("websocket.read_limit"),
			AllowedOrigins: v.GetStringSlice("websocket.allowed_origins"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
	}
}
