package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"slotrouter/pkg/cluster"
)

// Config - корневая структура конфигурации приложения

type Config struct {
	Logger  LoggerConfig  `yaml:"logger"`
	Server  ServerConfig  `yaml:"http-server"`
	Cluster ClusterConfig `yaml:"cluster"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type ServerConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

type ClusterConfig struct {
	// ReadFromReplicas sends read-only commands to a replica chosen per range.
	ReadFromReplicas bool `yaml:"read_from_replicas"`
	// Slots is the static topology used at start-up.
	Slots     []cluster.Slot  `yaml:"slots"`
	ZooKeeper ZooKeeperConfig `yaml:"zookeeper"`
}

// ZooKeeperConfig enables the ZooKeeper topology source when Servers is set.
type ZooKeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	Path           string        `yaml:"path"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

func (z ZooKeeperConfig) Enabled() bool {
	return len(z.Servers) > 0
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "DEBUG",
			JSON:  false,
		},
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: time.Second,
		},
		Cluster: ClusterConfig{
			ZooKeeper: ZooKeeperConfig{
				Path:           "/slotrouter/topology",
				SessionTimeout: 5 * time.Second,
			},
		},
	}
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch strings.ToUpper(c.Logger.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("logger.level: unknown level %q", c.Logger.Level))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("http-server.port: %d out of range", c.Server.Port))
	}

	if err := cluster.ValidateSlots(c.Cluster.Slots); err != nil {
		errs = append(errs, fmt.Errorf("cluster.slots: %w", err))
	}

	if zkc := c.Cluster.ZooKeeper; zkc.Enabled() {
		if !strings.HasPrefix(zkc.Path, "/") || strings.HasSuffix(zkc.Path, "/") {
			errs = append(errs, fmt.Errorf("cluster.zookeeper.path: invalid znode path %q", zkc.Path))
		}
		if zkc.SessionTimeout <= 0 {
			errs = append(errs, errors.New("cluster.zookeeper.session_timeout: must be positive"))
		}
	}

	return errors.Join(errs...)
}
