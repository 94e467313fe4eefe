package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "msgpack", cfg.Transport.Codec, "binary payloads survive the default codec")
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
surface: front-door
auto_foreground: true
reader:
  poll_interval: 250ms
transport:
  kind: mqtt
  codec: json
  mqtt:
    broker: tcp://broker:1883
    topic_prefix: house/front-door
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "front-door", cfg.Surface)
	assert.True(t, cfg.AutoForeground)
	assert.Equal(t, 250*time.Millisecond, cfg.Reader.PollInterval)
	assert.Equal(t, 3, cfg.Reader.Debounce, "unset values keep their default")
	assert.Equal(t, TransportMQTT, cfg.Transport.Kind)
	assert.Equal(t, "json", cfg.Transport.Codec)
	assert.Equal(t, "house/front-door", cfg.Transport.MQTT.TopicPrefix)
	assert.Equal(t, "nfc-bridge", cfg.Transport.MQTT.ClientID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		change func(c *Config)
	}{
		{"no surface", func(c *Config) { c.Surface = "" }},
		{"unknown codec", func(c *Config) { c.Transport.Codec = "xml" }},
		{"unknown transport", func(c *Config) { c.Transport.Kind = "carrier-pigeon" }},
		{"stream without address", func(c *Config) { c.Transport.Address = "" }},
		{"stream over udp", func(c *Config) { c.Transport.Network = "udp" }},
		{"mqtt without broker", func(c *Config) {
			c.Transport.Kind = TransportMQTT
			c.Transport.MQTT.Broker = ""
		}},
		{"mqtt qos", func(c *Config) {
			c.Transport.Kind = TransportMQTT
			c.Transport.MQTT.QoS = 3
		}},
		{"no debounce", func(c *Config) { c.Reader.Debounce = 0 }},
		{"no poll interval", func(c *Config) { c.Reader.PollInterval = 0 }},
		{"too few pages", func(c *Config) { c.Reader.MaxPages = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.change(c)
			assert.Error(t, c.Validate())
		})
	}

	c := Default()
	c.Reader.Enabled = false
	c.Reader.Debounce = 0
	assert.NoError(t, c.Validate(), "a disabled reader is not checked")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "surface: [unterminated"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "surface: \"\""))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)

	cfg, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
