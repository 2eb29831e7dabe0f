package config

import (
	"fmt"

	"github.com/telepair/webcheck/internal/bus"
	"github.com/telepair/webcheck/pkg/natsx/client"
	"github.com/telepair/webcheck/pkg/tlsutil"
)

// DefaultTopic is the subject records are published on.
const DefaultTopic = "webcheck"

// BusConfig selects the topic and how to reach the broker.
type BusConfig struct {
	Topic      string `yaml:"topic" json:"topic"`
	bus.Config `yaml:",inline"`
	TLS        tlsutil.ClientConfig `yaml:"tls" json:"tls"`
}

// DefaultBusConfig publishes on "webcheck" through nats://localhost:4222.
func DefaultBusConfig() BusConfig {
	return BusConfig{Topic: DefaultTopic, Config: bus.DefaultConfig()}
}

func (c *BusConfig) SetDefaults() {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	c.Config.SetDefaults()
}

func (c *BusConfig) Validate() error {
	if err := client.ValidateSubject(c.Topic, false); err != nil {
		return fmt.Errorf("topic: %w", err)
	}
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	return nil
}
