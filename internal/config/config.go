// Package config loads daemon and dashboard settings from configs/config.yml
// with AQUARIUM_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "AQUARIUM"

type Config struct {
	Port      string          `mapstructure:"port"`
	DB        DBConfig        `mapstructure:"db"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Hue       HueConfig       `mapstructure:"hue"`
	Modbus    ModbusConfig    `mapstructure:"modbus"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type StoreConfig struct {
	Root string `mapstructure:"root"`
	Seed string `mapstructure:"seed"` // YAML file applied when no tree is persisted
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// SyncConfig tunes the dashboard view core.
type SyncConfig struct {
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	Tick           time.Duration `mapstructure:"tick"`
}

type SimulatorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Tick     time.Duration `mapstructure:"tick"`
	Timezone string        `mapstructure:"timezone"`
}

// HueConfig enables the Hue light mirror when Bridge is set.
type HueConfig struct {
	Bridge  string `mapstructure:"bridge"`
	User    string `mapstructure:"user"`
	LightID int    `mapstructure:"light_id"`
}

// ModbusConfig enables the Modbus temperature probe when Address is set.
type ModbusConfig struct {
	Address  string        `mapstructure:"address"`
	SlaveID  int           `mapstructure:"slave_id"`
	Register int           `mapstructure:"register"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type DashboardConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
	View  string `mapstructure:"view"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("store.root", "aquarium")
	v.SetDefault("store.seed", "")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("sync.command_timeout", 10*time.Second)
	v.SetDefault("sync.tick", time.Minute)
	v.SetDefault("simulator.enabled", true)
	v.SetDefault("simulator.tick", time.Second)
	v.SetDefault("simulator.timezone", "Local")
	v.SetDefault("hue.bridge", "")
	v.SetDefault("hue.user", "")
	v.SetDefault("hue.light_id", 1)
	v.SetDefault("modbus.address", "")
	v.SetDefault("modbus.slave_id", 1)
	v.SetDefault("modbus.register", 0)
	v.SetDefault("modbus.timeout", 5*time.Second)
	v.SetDefault("dashboard.url", "ws://localhost:8080/ws")
	v.SetDefault("dashboard.token", "")
	v.SetDefault("dashboard.view", "dashboard")
}

// Load reads config.yml from the given directories (configs/ when none) and
// applies environment overrides such as AQUARIUM_STORE_ROOT. A missing file
// is not an error.
func Load(dirs ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if len(dirs) == 0 {
		dirs = []string{"configs"}
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the daemon or dashboard cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.Trim(c.Store.Root, "/") == "" {
		errs = append(errs, errors.New("store.root must not be empty"))
	}
	if c.Sync.CommandTimeout <= 0 {
		errs = append(errs, errors.New("sync.command_timeout must be positive"))
	}
	if c.Sync.Tick <= 0 {
		errs = append(errs, errors.New("sync.tick must be positive"))
	}
	if c.Simulator.Enabled && c.Simulator.Tick <= 0 {
		errs = append(errs, errors.New("simulator.tick must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Modbus.SlaveID < 0 || c.Modbus.SlaveID > 247 {
		errs = append(errs, fmt.Errorf("modbus.slave_id %d out of range 0..247", c.Modbus.SlaveID))
	}
	if c.Modbus.Register < 0 || c.Modbus.Register > 0xFFFF {
		errs = append(errs, fmt.Errorf("modbus.register %d out of range", c.Modbus.Register))
	}
	return errors.Join(errs...)
}

// Location resolves simulator.timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Simulator.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Simulator.Timezone)
	if err != nil {
		return nil, fmt.Errorf("simulator.timezone: %w", err)
	}
	return loc, nil
}
