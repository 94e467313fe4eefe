// Package config loads the bridge configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/callebjorkell/nfc-bridge/channel"
	"github.com/callebjorkell/nfc-bridge/nfc"
	"gopkg.in/yaml.v3"
)

const (
	TransportStream = "stream"
	TransportMQTT   = "mqtt"
)

type Config struct {
	Surface        string           `yaml:"surface"`
	AutoForeground bool             `yaml:"auto_foreground"`
	LogLevel       string           `yaml:"log_level"`
	StateDB        string           `yaml:"state_db"`
	Reader         nfc.ReaderConfig `yaml:"reader"`
	Transport      TransportConfig  `yaml:"transport"`
	Control        ControlConfig    `yaml:"control"`
	UI             UIConfig         `yaml:"ui"`
}

// TransportConfig selects how the consumer reaches the bridge.
type TransportConfig struct {
	Kind    string `yaml:"kind"` // stream or mqtt
	// Codec is json or msgpack. json replaces invalid UTF-8, so binary payloads only arrive
	// unchanged with msgpack.
	Codec   string `yaml:"codec"`
	// Network and Address are used by the stream transport, e.g. tcp and :7070, or unix and a path.
	Network string             `yaml:"network"`
	Address string             `yaml:"address"`
	MQTT    channel.MQTTConfig `yaml:"mqtt"`
}

type ControlConfig struct {
	// Address of the HTTP control API. Empty disables it.
	Address string `yaml:"address"`
}

// UIConfig names the GPIO pins of the status light and the receive switch. Empty pins are not used.
type UIConfig struct {
	RedPin    string `yaml:"red_pin"`
	GreenPin  string `yaml:"green_pin"`
	BluePin   string `yaml:"blue_pin"`
	SwitchPin string `yaml:"switch_pin"`
}

func Default() *Config {
	return &Config{
		Surface:  "default",
		LogLevel: "info",
		StateDB:  "nfc-bridge.db",
		Reader: nfc.ReaderConfig{
			Enabled:      true,
			Bus:          0,
			Device:       0,
			SpeedHz:      1000000,
			ResetPin:     22,
			IrqPin:       18,
			PollInterval: 100 * time.Millisecond,
			Debounce:     3,
			MaxPages:     64,
		},
		Transport: TransportConfig{
			Kind:    TransportStream,
			Codec:   "msgpack",
			Network: "tcp",
			Address: "127.0.0.1:7070",
			MQTT: channel.MQTTConfig{
				Broker:      "tcp://localhost:1883",
				ClientID:    "nfc-bridge",
				TopicPrefix: "nfc-bridge",
				QoS:         1,
			},
		},
		Control: ControlConfig{Address: "127.0.0.1:7071"},
		UI: UIConfig{
			RedPin:   "GPIO6",
			GreenPin: "GPIO5",
			BluePin:  "GPIO13",
		},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path gives the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Surface == "" {
		return errors.New("surface must be set")
	}
	if _, err := channel.CodecByName(c.Transport.Codec); err != nil {
		return err
	}

	switch c.Transport.Kind {
	case TransportStream:
		if c.Transport.Address == "" {
			return errors.New("transport.address must be set for the stream transport")
		}
		if c.Transport.Network != "tcp" && c.Transport.Network != "unix" {
			return fmt.Errorf("unsupported stream network %q", c.Transport.Network)
		}
	case TransportMQTT:
		if c.Transport.MQTT.Broker == "" || c.Transport.MQTT.TopicPrefix == "" {
			return errors.New("transport.mqtt needs a broker and a topic_prefix")
		}
		if c.Transport.MQTT.QoS > 2 {
			return fmt.Errorf("invalid mqtt qos %d", c.Transport.MQTT.QoS)
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport.Kind)
	}

	if c.Reader.Enabled {
		if c.Reader.PollInterval <= 0 {
			return errors.New("reader.poll_interval must be positive")
		}
		if c.Reader.Debounce < 1 {
			return errors.New("reader.debounce must be at least 1")
		}
		if c.Reader.MaxPages < 4 {
			return errors.New("reader.max_pages must be at least 4")
		}
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
