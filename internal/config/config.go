package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const ConfigPathEnv = "CONFIG_FILE"

const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Query   QueryConfig   `yaml:"query"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"HTTP_CORS_ORIGINS"`
}

type StorageConfig struct {
	Type        string `yaml:"type" env:"STORAGE_TYPE"`
	SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	PostgresDSN string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
}

type LogConfig struct {
	Dir    string `yaml:"dir" env:"LOG_DIR"`
	File   string `yaml:"file" env:"LOG_FILE"`
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Stdout bool   `yaml:"stdout" env:"LOG_STDOUT"`
}

type QueryConfig struct {
	MaxLimit int `yaml:"max_limit" env:"QUERY_MAX_LIMIT"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 25 * time.Second,
			CORSOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Storage: StorageConfig{
			Type:       StorageSQLite,
			SQLitePath: "../db/citypulse.db",
		},
		Log: LogConfig{
			Dir:   "../log",
			File:  "webService.log",
			Level: "info",
		},
		Query: QueryConfig{
			MaxLimit: 1000,
		},
	}
}

// Load starts from Default, applies the YAML file at path (or $CONFIG_FILE
// when path is empty; no file is fine) and then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := populateFromEnv(reflect.ValueOf(&cfg).Elem()); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("http addr cannot be empty")
	}
	switch c.Storage.Type {
	case StorageSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return errors.New("sqlite_path is required for sqlite storage")
		}
	case StoragePostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return errors.New("postgres_dsn is required for postgres storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid storage type %q (allowed: sqlite, postgres, memory)", c.Storage.Type)
	}
	switch strings.ToLower(c.Log.Level) {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid log level %q (allowed: debug, info, warn, error)", c.Log.Level)
	}
	if c.Query.MaxLimit <= 0 {
		return errors.New("query max_limit must be positive")
	}
	return nil
}

func loadFromFile(path string, target *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// populateFromEnv walks nested structs and applies fields carrying an env tag.
func populateFromEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fieldVal := v.Field(i)
		fieldType := t.Field(i)

		if !fieldVal.CanSet() {
			continue
		}
		if fieldVal.Kind() == reflect.Struct {
			if err := populateFromEnv(fieldVal); err != nil {
				return err
			}
			continue
		}

		key := fieldType.Tag.Get("env")
		if key == "" || key == "-" {
			continue
		}
		if val, ok := os.LookupEnv(key); ok {
			if err := assign(fieldVal, val); err != nil {
				return fmt.Errorf("config: parse %s: %w", key, err)
			}
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func assign(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(parsed)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(parsed)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type().String())
		}
		var parts []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type().String())
	}
	return nil
}
