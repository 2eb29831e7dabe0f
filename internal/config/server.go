package config

import (
	"fmt"

	"github.com/telepair/webcheck/pkg/natsx/embed"
)

// ServerConfig holds settings of the in-process NATS server.
type ServerConfig struct {
	EnableEmbedNATS bool         `yaml:"enable_embed_nats" json:"enable_embed_nats"`
	EmbedNATS       embed.Config `yaml:"embed_nats"        json:"embed_nats"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{EmbedNATS: embed.DefaultConfig()}
}

func (s *ServerConfig) SetDefaults() {
	s.EmbedNATS.SetDefaults()
}

func (s *ServerConfig) Validate() error {
	if !s.EnableEmbedNATS {
		return nil
	}
	if err := s.EmbedNATS.Validate(); err != nil {
		return fmt.Errorf("invalid embed_nats config: %w", err)
	}
	return nil
}
