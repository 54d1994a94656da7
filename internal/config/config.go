// Package config loads flashq settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/schema"
)

type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Study     StudyConfig     `mapstructure:"study"`
}

type StoreConfig struct {
	Path              string  `mapstructure:"path" validate:"required_unless=InMemory true"`
	InMemory          bool    `mapstructure:"in_memory"`
	SyncWrites        bool    `mapstructure:"sync_writes"`
	GCIntervalSeconds int     `mapstructure:"gc_interval_seconds" validate:"min=0"`
	GCDiscardRatio    float64 `mapstructure:"gc_discard_ratio" validate:"gt=0,lt=1"`
}

// KV returns the badger settings of the store.
func (c StoreConfig) KV() kvstore.Config {
	return kvstore.Config{
		Path:           c.Path,
		InMemory:       c.InMemory,
		SyncWrites:     c.SyncWrites,
		GCInterval:     time.Duration(c.GCIntervalSeconds) * time.Second,
		GCDiscardRatio: c.GCDiscardRatio,
	}
}

type MirrorConfig struct {
	Driver     string         `mapstructure:"driver" validate:"oneof=sqlite mysql"`
	SQLitePath string         `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
	Retries    int            `mapstructure:"retries" validate:"min=1"`
	Database   DatabaseConfig `mapstructure:"database"`
}

type DatabaseConfig struct {
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds"`
}

// SchedulerConfig seeds the default conf and the prefs of a fresh store.
type SchedulerConfig struct {
	NewPerDay int `mapstructure:"new_per_day" validate:"min=0"`
	// ReviewsPerDay of -1 leaves reviews unbounded.
	ReviewsPerDay   int     `mapstructure:"reviews_per_day" validate:"min=-1"`
	RandomNewOrder  bool    `mapstructure:"random_new_order"`
	Fuzz            bool    `mapstructure:"fuzz"`
	MaxInterval     int     `mapstructure:"max_interval" validate:"min=1"`
	Retention       float64 `mapstructure:"retention" validate:"gt=0,lt=1"`
	DayStartMinutes int     `mapstructure:"day_start_minutes" validate:"min=0,max=1439"`
	CollapseSeconds int     `mapstructure:"collapse_seconds" validate:"min=0"`
}

// Conf returns the default conf described by c.
func (c SchedulerConfig) Conf() schema.Conf {
	conf := schema.Conf{
		ID:             schema.DefaultConfID,
		Name:           "Default",
		NewPerDay:      c.NewPerDay,
		RandomNewOrder: c.RandomNewOrder,
		Fuzz:           c.Fuzz,
		MaxInterval:    c.MaxInterval,
		Retention:      c.Retention,
	}
	if c.ReviewsPerDay >= 0 {
		reviews := c.ReviewsPerDay
		conf.ReviewsPerDay = &reviews
	}
	return conf
}

// Prefs returns the preferences described by c.
func (c SchedulerConfig) Prefs() schema.Prefs {
	return schema.Prefs{DayStart: c.DayStartMinutes, CollapseTime: c.CollapseSeconds}
}

type StudyConfig struct {
	DefaultDeck string `mapstructure:"default_deck" validate:"required,deckname"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/flashq")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("store.path", filepath.Join("data", "store"))
	v.SetDefault("store.sync_writes", true)
	v.SetDefault("store.gc_interval_seconds", 300)
	v.SetDefault("store.gc_discard_ratio", 0.5)
	v.SetDefault("mirror.driver", "sqlite")
	v.SetDefault("mirror.sqlite_path", filepath.Join("data", "mirror.db"))
	v.SetDefault("mirror.retries", 5)
	v.SetDefault("mirror.database.host", "localhost")
	v.SetDefault("mirror.database.port", 3306)
	v.SetDefault("mirror.database.database", "flashq")
	v.SetDefault("mirror.database.username", "user")
	v.SetDefault("scheduler.new_per_day", 20)
	v.SetDefault("scheduler.reviews_per_day", 200)
	v.SetDefault("scheduler.fuzz", true)
	v.SetDefault("scheduler.max_interval", 36500)
	v.SetDefault("scheduler.retention", 0.9)
	v.SetDefault("scheduler.day_start_minutes", 240)
	v.SetDefault("scheduler.collapse_seconds", 1200)
	v.SetDefault("study.default_deck", "Default")

	if err := v.BindEnv("store.path", "FLASHQ_STORE_PATH"); err != nil {
		return nil, fmt.Errorf("failed to bind FLASHQ_STORE_PATH environment variable: %w", err)
	}
	// Bind database password to environment variable
	if err := v.BindEnv("mirror.database.password", "DB_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind DB_PASSWORD environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		errorMsgs := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}

	return &cfg, nil
}
