package backend

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Keepalive KeepaliveConfig `yaml:"keepalive,omitempty"`
	Roster    RosterConfig    `yaml:"roster,omitempty"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type KeepaliveConfig struct {
	Interval  time.Duration `yaml:"interval,omitempty"`
	MaxMisses int           `yaml:"max-misses,omitempty"`
}

type RosterConfig struct {
	// ResyncInterval > 0 enables periodic full-roster resync to bound
	// staleness from dropped best-effort broadcasts.
	ResyncInterval time.Duration `yaml:"resync-interval,omitempty"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTP: HTTPConfig{Listen: ":8080"},
		Keepalive: KeepaliveConfig{
			Interval:  KeepAlive,
			MaxMisses: int(MaxKeepAliveMisses),
		},
	}
}

// LoadConfig reads a yaml config file over the defaults. Flag values
// applied by the caller afterwards win over both.
func LoadConfig(path string) (ServerConfig, error) {
	config := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("config: %s", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("config: %s", err)
	}
	return config, nil
}
