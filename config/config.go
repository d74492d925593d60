package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

type Registry struct {
	Host    string `yaml:"host" env:"REGISTRY_HOST" env-default:"localhost"`
	Port    int    `yaml:"port" env:"REGISTRY_PORT" env-default:"8080"`
	Address string `yaml:"-"`
}

type Transport struct {
	TimeoutSeconds int  `yaml:"timeout_seconds" env:"TRANSPORT_TIMEOUT_SECONDS" env-default:"30"`
	Compress       bool `yaml:"compress" env:"TRANSPORT_COMPRESS"`
}

type RateLimit struct {
	PerSecond float64 `yaml:"per_second" env:"RATE_LIMIT_PER_SECOND" env-default:"100"`
	Burst     int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"50"`
}

type Config struct {
	Registry             Registry  `yaml:"registry"`
	BaseOnionRouterPort  int       `yaml:"base_onion_router_port" env:"BASE_ONION_ROUTER_PORT" env-default:"4000"`
	BaseUserPort         int       `yaml:"base_user_port" env:"BASE_USER_PORT" env-default:"9000"`
	NumRelays            int       `yaml:"num_relays" env:"NUM_RELAYS" env-default:"10"`
	NumUsers             int       `yaml:"num_users" env:"NUM_USERS" env-default:"2"`
	RelayHost            string    `yaml:"relay_host" env:"RELAY_HOST" env-default:"localhost"`
	UserHost             string    `yaml:"user_host" env:"USER_HOST" env-default:"localhost"`
	Transport            Transport `yaml:"transport"`
	RateLimit            RateLimit `yaml:"rate_limit"`
	RegistryCacheSeconds int       `yaml:"registry_cache_seconds" env:"REGISTRY_CACHE_SECONDS" env-default:"0"`
	DatabaseURL          string    `yaml:"database_url" env:"DATABASE_URL"`
	PrometheusPort       int       `yaml:"prometheus_port" env:"PROMETHEUS_PORT" env-default:"9100"`
	PrometheusPath       string    `yaml:"prometheus_path" env:"PROMETHEUS_PATH"`
	LogLevel             string    `yaml:"log_level" env:"LOG_LEVEL" env-default:"debug"`
}

var GlobalConfig *Config
var GlobalCtx context.Context
var GlobalCancel context.CancelFunc

// InitGlobal loads config.yml into GlobalConfig, looking first under ./config and then next to this file.
// Environment variables override file values. It returns the path that was read.
func InitGlobal() (string, error) {
	GlobalCtx, GlobalCancel = context.WithCancel(context.Background())

	cfg, path, err := Load()
	if err != nil {
		return "", err
	}
	GlobalConfig = cfg
	return path, nil
}

// Load reads and validates the configuration without touching the globals.
func Load() (*Config, string, error) {
	cfg := &Config{}
	path := ""

	if dir, err := os.Getwd(); err != nil {
		return nil, "", errors.Wrap(err, "config.Load(): failed to get working directory")
	} else if err2 := cleanenv.ReadConfig(filepath.Join(dir, "config", "config.yml"), cfg); err2 != nil {
		_, currentFile, _, ok := runtime.Caller(0)
		if !ok {
			return nil, "", errors.New("config.Load(): failed to get current file path")
		}
		configFilePath := filepath.Join(filepath.Dir(currentFile), "config.yml")
		if err3 := cleanenv.ReadConfig(configFilePath, cfg); err3 != nil {
			return nil, "", errors.Wrap(err3, "config.Load(): global config error")
		}
		path = configFilePath
	} else {
		path = filepath.Join(dir, "config", "config.yml")
	}

	cfg.finish()
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Default returns a configuration populated only from env-default tags and environment overrides.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, errors.Wrap(err, "config.Default(): failed to read env")
	}
	cfg.finish()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() {
	c.Registry.Address = fmt.Sprintf("http://%s:%d", c.Registry.Host, c.Registry.Port)
}

// Validate checks that relay and user address ranges cannot overlap, since the
// user threshold is what tells a relay whether its next hop is a user.
func (c *Config) Validate() error {
	if c.NumRelays < 0 || c.NumUsers < 0 {
		return errors.New("num_relays and num_users must not be negative")
	}
	if c.BaseOnionRouterPort+c.NumRelays > c.BaseUserPort {
		return errors.Errorf("relay addresses [%d, %d) overlap user addresses starting at %d",
			c.BaseOnionRouterPort, c.BaseOnionRouterPort+c.NumRelays, c.BaseUserPort)
	}
	return nil
}

// RelayAddress is the address (port) a relay listens on.
func (c *Config) RelayAddress(id int) int {
	return c.BaseOnionRouterPort + id
}

// UserAddress is the address (port) a user listens on.
func (c *Config) UserAddress(id int) int {
	return c.BaseUserPort + id
}

// IsUserAddress reports whether an address denotes an end recipient rather than a relay.
func (c *Config) IsUserAddress(address int) bool {
	return address >= c.BaseUserPort
}

// HostFor returns the host that owns an address.
func (c *Config) HostFor(address int) string {
	if c.IsUserAddress(address) {
		return c.UserHost
	}
	return c.RelayHost
}

// RelayPrometheusPort is the metrics port of a relay process. PrometheusPort itself belongs to the registry.
func (c *Config) RelayPrometheusPort(id int) int {
	return c.PrometheusPort + 1 + id
}

// UserPrometheusPort is the metrics port of a user process.
func (c *Config) UserPrometheusPort(id int) int {
	return c.PrometheusPort + 1 + c.NumRelays + id
}

// TransportTimeout is the whole-request timeout used by the HTTP transport.
func (c *Config) TransportTimeout() time.Duration {
	return time.Duration(c.Transport.TimeoutSeconds) * time.Second
}

// RegistryCacheTTL is how long a user reuses a fetched node registry. Zero disables caching.
func (c *Config) RegistryCacheTTL() time.Duration {
	return time.Duration(c.RegistryCacheSeconds) * time.Second
}

var PurpleColor = "\033[35m"
var OrangeColor = "\033[33m"
var ResetColor = "\033[0m"

// AddressToName renders an address for log output.
func (c *Config) AddressToName(address int) string {
	if c.IsUserAddress(address) {
		return fmt.Sprintf("%sUser %d%s", OrangeColor, address-c.BaseUserPort, ResetColor)
	}
	if address >= c.BaseOnionRouterPort {
		return fmt.Sprintf("%sRelay %d%s", PurpleColor, address-c.BaseOnionRouterPort, ResetColor)
	}
	return fmt.Sprintf("%d", address)
}

// PrometheusConfigPath is where InitPrometheusConfig writes, next to the config file unless overridden.
func (c *Config) PrometheusConfigPath(configPath string) string {
	if c.PrometheusPath != "" {
		return c.PrometheusPath
	}
	return strings.ReplaceAll(configPath, "config.yml", "prometheus.yml")
}
