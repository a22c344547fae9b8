package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	S3       S3Config
	Realtime RealtimeConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	Port        string
	Mode        string
	NodeID      string
	LogMode     string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PublicBase string
	PresignTTL time.Duration
}

type RealtimeConfig struct {
	MaxConnectionsPerUser int
	PersistTimeout        time.Duration
	ReadMarkPolicy        string
	MessageRateLimit      int
	ConnectionRateLimit   int
	RelayEnabled          bool
}

type JobsConfig struct {
	Enabled       bool
	Concurrency   int
	PurgeSchedule string
	RetentionDays int
}

var defaults = map[string]any{
	"APP_PORT":                    "8080",
	"APP_MODE":                    "debug",
	"APP_NODE_ID":                 "",
	"LOG_MODE":                    "development",
	"CORS_ALLOWED_ORIGINS":        "*",
	"DB_HOST":                     "localhost",
	"DB_PORT":                     "5432",
	"DB_USER":                     "postgres",
	"DB_PASSWORD":                 "postgres",
	"DB_NAME":                     "benome",
	"DB_SSLMODE":                  "disable",
	"DB_MAX_OPEN_CONNS":           50,
	"DB_MAX_IDLE_CONNS":           10,
	"REDIS_ENABLED":               true,
	"REDIS_HOST":                  "localhost",
	"REDIS_PORT":                  "6379",
	"REDIS_PASSWORD":              "",
	"REDIS_DB":                    0,
	"JWT_SECRET":                  "",
	"S3_REGION":                   "",
	"S3_BUCKET":                   "",
	"S3_ACCESS_KEY":               "",
	"S3_SECRET_KEY":               "",
	"S3_ENDPOINT":                 "",
	"S3_PUBLIC_BASE":              "",
	"S3_PRESIGN_TTL":              "15m",
	"WS_MAX_CONNECTIONS_PER_USER": 10,
	"WS_PERSIST_TIMEOUT":          "10s",
	"READ_MARK_POLICY":            "page",
	"MESSAGE_RATE_LIMIT":          60,
	"WS_CONNECTION_RATE_LIMIT":    30,
	"RELAY_ENABLED":               false,
	"JOBS_ENABLED":                true,
	"JOBS_CONCURRENCY":            5,
	"NOTIFICATION_PURGE_SCHEDULE": "@daily",
	"NOTIFICATION_RETENTION_DAYS": 30,
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Port:        v.GetString("APP_PORT"),
			Mode:        v.GetString("APP_MODE"),
			NodeID:      v.GetString("APP_NODE_ID"),
			LogMode:     v.GetString("LOG_MODE"),
			CORSOrigins: strings.Split(v.GetString("CORS_ALLOWED_ORIGINS"), ","),
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetString("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		S3: S3Config{
			Region:     v.GetString("S3_REGION"),
			Bucket:     v.GetString("S3_BUCKET"),
			AccessKey:  v.GetString("S3_ACCESS_KEY"),
			SecretKey:  v.GetString("S3_SECRET_KEY"),
			Endpoint:   v.GetString("S3_ENDPOINT"),
			PublicBase: strings.TrimRight(v.GetString("S3_PUBLIC_BASE"), "/"),
			PresignTTL: v.GetDuration("S3_PRESIGN_TTL"),
		},
		Realtime: RealtimeConfig{
			MaxConnectionsPerUser: v.GetInt("WS_MAX_CONNECTIONS_PER_USER"),
			PersistTimeout:        v.GetDuration("WS_PERSIST_TIMEOUT"),
			ReadMarkPolicy:        strings.ToLower(v.GetString("READ_MARK_POLICY")),
			MessageRateLimit:      v.GetInt("MESSAGE_RATE_LIMIT"),
			ConnectionRateLimit:   v.GetInt("WS_CONNECTION_RATE_LIMIT"),
			RelayEnabled:          v.GetBool("RELAY_ENABLED"),
		},
		Jobs: JobsConfig{
			Enabled:       v.GetBool("JOBS_ENABLED"),
			Concurrency:   v.GetInt("JOBS_CONCURRENCY"),
			PurgeSchedule: v.GetString("NOTIFICATION_PURGE_SCHEDULE"),
			RetentionDays: v.GetInt("NOTIFICATION_RETENTION_DAYS"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Realtime.ReadMarkPolicy != "page" && c.Realtime.ReadMarkPolicy != "all" {
		errs = append(errs, fmt.Errorf("READ_MARK_POLICY must be page or all, got %q", c.Realtime.ReadMarkPolicy))
	}
	if c.Realtime.PersistTimeout <= 0 {
		errs = append(errs, errors.New("WS_PERSIST_TIMEOUT must be positive"))
	}
	if (c.Jobs.Enabled || c.Realtime.RelayEnabled) && !c.Redis.Enabled {
		errs = append(errs, errors.New("jobs and relay require REDIS_ENABLED"))
	}
	if c.Jobs.RetentionDays <= 0 {
		errs = append(errs, errors.New("NOTIFICATION_RETENTION_DAYS must be positive"))
	}
	return errors.Join(errs...)
}

// DSN is the gorm/pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

// URL is the lib/pq style URL used for migrations.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

func (s S3Config) Enabled() bool {
	return s.Region != "" && s.Bucket != ""
}
