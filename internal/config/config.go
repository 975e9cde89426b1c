package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app" toml:"app"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Database   DatabaseConfig   `yaml:"database" toml:"database"`
	Redis      RedisConfig      `yaml:"redis" toml:"redis"`
	Storage    StorageConfig    `yaml:"storage" toml:"storage"`
	ContentAPI ContentAPIConfig `yaml:"content_api" toml:"content_api"`
	Staging    StagingConfig    `yaml:"staging" toml:"staging"`
	Auth       AuthConfig       `yaml:"auth" toml:"auth"`
	Workers    WorkersConfig    `yaml:"workers" toml:"workers"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name" toml:"name"`
	Version string `yaml:"version" toml:"version"`
	Env     string `yaml:"env" toml:"env"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" toml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins" toml:"allowed_origins"`
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type DatabaseConfig struct {
	Driver             string        `yaml:"driver" toml:"driver"`
	Host               string        `yaml:"host" toml:"host"`
	Port               int           `yaml:"port" toml:"port"`
	User               string        `yaml:"user" toml:"user"`
	Password           string        `yaml:"password" toml:"password"`
	Name               string        `yaml:"name" toml:"name"`
	Charset            string        `yaml:"charset" toml:"charset"`
	Loc                string        `yaml:"loc" toml:"loc"`
	SQLitePath         string        `yaml:"sqlite_path" toml:"sqlite_path"`
	MaxConnections     int           `yaml:"max_connections" toml:"max_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections" toml:"max_idle_connections"`
	ConnectionLifetime time.Duration `yaml:"connection_lifetime" toml:"connection_lifetime"`
}

type RedisConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Host        string `yaml:"host" toml:"host"`
	Port        int    `yaml:"port" toml:"port"`
	Password    string `yaml:"password" toml:"password"`
	DB          int    `yaml:"db" toml:"db"`
	PoolSize    int    `yaml:"pool_size" toml:"pool_size"`
	LockPrefix  string `yaml:"lock_prefix" toml:"lock_prefix"`
	EventsQueue string `yaml:"events_queue" toml:"events_queue"`
	DLQSuffix   string `yaml:"dlq_suffix" toml:"dlq_suffix"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3" toml:"s3"`
}

type S3Config struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Endpoint  string `yaml:"endpoint" toml:"endpoint"`
	AccessKey string `yaml:"access_key" toml:"access_key"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	Bucket    string `yaml:"bucket" toml:"bucket"`
	Region    string `yaml:"region" toml:"region"`
	UseSSL    bool   `yaml:"use_ssl" toml:"use_ssl"`
	Prefix    string `yaml:"prefix" toml:"prefix"`
}

const (
	ContentDriverHTTP   = "http"
	ContentDriverMemory = "memory"
)

type ContentAPIConfig struct {
	Driver               string        `yaml:"driver" toml:"driver"`
	BaseURL              string        `yaml:"base_url" toml:"base_url"`
	AuthEndpoint         string        `yaml:"auth_endpoint" toml:"auth_endpoint"`
	DevotionalsEndpoint  string        `yaml:"devotionals_endpoint" toml:"devotionals_endpoint"`
	MemoryVersesEndpoint string        `yaml:"memory_verses_endpoint" toml:"memory_verses_endpoint"`
	KeyLessonsEndpoint   string        `yaml:"key_lessons_endpoint" toml:"key_lessons_endpoint"`
	QuizzesEndpoint      string        `yaml:"quizzes_endpoint" toml:"quizzes_endpoint"`
	Email                string        `yaml:"email" toml:"email"`
	Password             string        `yaml:"password" toml:"password"`
	TokenExpires         time.Duration `yaml:"token_expires" toml:"token_expires"`
	Timeout              time.Duration `yaml:"timeout" toml:"timeout"`
}

const (
	DuplicateDayLastWins  = "last"
	DuplicateDayFirstWins = "first"
)

type StagingConfig struct {
	MaxFileSize        int64         `yaml:"max_file_size" toml:"max_file_size"`
	DefaultPageSize    int           `yaml:"default_page_size" toml:"default_page_size"`
	MaxPageSize        int           `yaml:"max_page_size" toml:"max_page_size"`
	DuplicateDayPolicy string        `yaml:"duplicate_day_policy" toml:"duplicate_day_policy"`
	CommitConcurrency  int           `yaml:"commit_concurrency" toml:"commit_concurrency"`
	LockTTL            time.Duration `yaml:"lock_ttl" toml:"lock_ttl"`
	LockWait           time.Duration `yaml:"lock_wait" toml:"lock_wait"`
}

type AuthConfig struct {
	Admins []AdminCredential `yaml:"admins" toml:"admins"`
}

// AdminCredential maps a static bearer token to an admin identity.
type AdminCredential struct {
	Token     string `yaml:"token" toml:"token"`
	ID        string `yaml:"id" toml:"id"`
	FirstName string `yaml:"first_name" toml:"first_name"`
	LastName  string `yaml:"last_name" toml:"last_name"`
	Email     string `yaml:"email" toml:"email"`
}

type WorkersConfig struct {
	Audit AuditWorkerConfig `yaml:"audit" toml:"audit"`
}

type AuditWorkerConfig struct {
	Count int `yaml:"count" toml:"count"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

func Load() (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	return LoadFile(configPath)
}

func LoadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"DB_PASSWORD":          &c.Database.Password,
		"REDIS_PASSWORD":       &c.Redis.Password,
		"CONTENT_API_PASSWORD": &c.ContentAPI.Password,
		"S3_SECRET_KEY":        &c.Storage.S3.SecretKey,
	}
	for key, target := range overrides {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "planted-staging"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 2 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverMySQL
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.Loc == "" {
		c.Database.Loc = "UTC"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/staging.db"
	}

	if c.Redis.LockPrefix == "" {
		c.Redis.LockPrefix = "staging:lock:"
	}
	if c.Redis.EventsQueue == "" {
		c.Redis.EventsQueue = "staging:events"
	}
	if c.Redis.DLQSuffix == "" {
		c.Redis.DLQSuffix = ":dlq"
	}

	if c.Storage.S3.Prefix == "" {
		c.Storage.S3.Prefix = "staged-uploads"
	}

	api := &c.ContentAPI
	if api.Driver == "" {
		api.Driver = ContentDriverHTTP
	}
	if api.AuthEndpoint == "" {
		api.AuthEndpoint = "/auth/login"
	}
	if api.DevotionalsEndpoint == "" {
		api.DevotionalsEndpoint = "/admin/devotionals"
	}
	if api.MemoryVersesEndpoint == "" {
		api.MemoryVersesEndpoint = "/admin/memory-verses"
	}
	if api.KeyLessonsEndpoint == "" {
		api.KeyLessonsEndpoint = "/admin/key-lessons"
	}
	if api.QuizzesEndpoint == "" {
		api.QuizzesEndpoint = "/admin/quizzes"
	}
	if api.TokenExpires == 0 {
		api.TokenExpires = time.Hour
	}
	if api.Timeout == 0 {
		api.Timeout = 30 * time.Second
	}

	s := &c.Staging
	if s.MaxFileSize == 0 {
		s.MaxFileSize = 10 << 20
	}
	if s.DefaultPageSize == 0 {
		s.DefaultPageSize = 20
	}
	if s.MaxPageSize == 0 {
		s.MaxPageSize = 100
	}
	if s.DuplicateDayPolicy == "" {
		s.DuplicateDayPolicy = DuplicateDayLastWins
	}
	if s.CommitConcurrency == 0 {
		s.CommitConcurrency = 4
	}
	if s.LockTTL == 0 {
		s.LockTTL = 2 * time.Minute
	}
	if s.LockWait == 0 {
		s.LockWait = 30 * time.Second
	}

	if c.Workers.Audit.Count == 0 {
		c.Workers.Audit.Count = 2
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.ContentAPI.Driver {
	case ContentDriverHTTP:
		if c.ContentAPI.BaseURL == "" {
			return fmt.Errorf("content_api.base_url is required for the http driver")
		}
	case ContentDriverMemory:
	default:
		return fmt.Errorf("unsupported content_api driver %q", c.ContentAPI.Driver)
	}

	switch c.Staging.DuplicateDayPolicy {
	case DuplicateDayLastWins, DuplicateDayFirstWins:
	default:
		return fmt.Errorf("unsupported staging.duplicate_day_policy %q", c.Staging.DuplicateDayPolicy)
	}

	if c.Storage.S3.Enabled && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when S3 archiving is enabled")
	}

	return nil
}

// MySQL DSN format: [username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port,
		c.Database.Name, c.Database.Charset, c.Database.Loc)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
