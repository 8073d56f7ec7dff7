package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"autoformat-service/backend/internal/marker"
	"autoformat-service/backend/internal/store"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMySQL  = "mysql"
	BackendSQLite = "sqlite"
)

var ErrUnknownBackend = errors.New("UNKNOWN_STORAGE_BACKEND")

type Config struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`
	Storage struct {
		Backend string `mapstructure:"backend"` // memory / redis / mysql / sqlite
		Slot    string `mapstructure:"slot"`    // editorctl 默认读写的 slot
		Redis   struct {
			Addrs    []string `mapstructure:"addrs"`
			Password string   `mapstructure:"password"`
			// backend 为 mysql/sqlite 时在前面挂 redis 读缓存
			Cache bool `mapstructure:"cache"`
		} `mapstructure:"redis"`
		Mysql struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"mysql"`
		SQLite struct {
			Path string `mapstructure:"path"`
		} `mapstructure:"sqlite"`
	} `mapstructure:"storage"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Recording struct {
		Default bool `mapstructure:"default"`
	} `mapstructure:"recording"`
	History struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"history"`
	Auth struct {
		Secret string `mapstructure:"secret"` // 为空时不鉴权
	} `mapstructure:"auth"`
	Websocket struct {
		AllowedOrigins  []string `mapstructure:"allowed_origins"`
		MaxMessageBytes int64    `mapstructure:"max_message_bytes"`
	} `mapstructure:"websocket"`
	// 为空时使用内置规则
	Markers []marker.Rule `mapstructure:"markers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("running.port", 8082)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.slot", "default")
	v.SetDefault("storage.redis.cache", false)
	v.SetDefault("storage.sqlite.path", "./data/autoformat.db")
	v.SetDefault("kafka.topic", "doc-commits")
	v.SetDefault("recording.default", true)
	v.SetDefault("history.capacity", 1024)
	v.SetDefault("websocket.max_message_bytes", 1<<20)
}

// Load 读取 autoformatConfig.yaml。paths 为空时兼容从项目根目录或 backend 目录启动。
// 配置文件不存在时只用默认值和环境变量（AUTOFORMAT_STORAGE_BACKEND 这种）。
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("autoformatConfig")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./backend/config", "./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("AUTOFORMAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis, BackendMySQL, BackendSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Storage.Backend)
	}
	_, err := c.MarkerTable()
	return err
}

// StoreOptions 转成 store.Open 的参数
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		RedisAddrs:    c.Storage.Redis.Addrs,
		RedisPassword: c.Storage.Redis.Password,
		MySQLDSN:      c.Storage.Mysql.DSN,
		SQLitePath:    c.Storage.SQLite.Path,
		RedisCache:    c.Storage.Redis.Cache,
	}
}

// MarkerTable 配置了 markers 就用配置的，否则用内置规则
func (c *Config) MarkerTable() (marker.Table, error) {
	if len(c.Markers) == 0 {
		return marker.DefaultTable(), nil
	}
	return marker.NewTable(c.Markers...)
}
