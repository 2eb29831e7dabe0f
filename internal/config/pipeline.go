package config

import (
	"fmt"
	"time"

	"github.com/telepair/webcheck/internal/pipeline"
)

// PipelineConfig tunes the producer and consumer.
type PipelineConfig struct {
	Interval      time.Duration `yaml:"interval"        json:"interval"`
	QueueCapacity int           `yaml:"queue_capacity"  json:"queue_capacity"`
	OnMalformed   string        `yaml:"on_malformed"    json:"on_malformed"`
	OnWriterError string        `yaml:"on_writer_error" json:"on_writer_error"`
}

// DefaultPipelineConfig checks every 15 seconds and stops on a malformed payload.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Interval:      pipeline.DefaultInterval,
		QueueCapacity: pipeline.DefaultQueueCapacity,
		OnMalformed:   string(pipeline.MalformedStop),
		OnWriterError: string(pipeline.WriterErrorContinue),
	}
}

func (c *PipelineConfig) SetDefaults() {
	if c.Interval == 0 {
		c.Interval = pipeline.DefaultInterval
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = pipeline.DefaultQueueCapacity
	}
	if c.OnMalformed == "" {
		c.OnMalformed = string(pipeline.MalformedStop)
	}
	if c.OnWriterError == "" {
		c.OnWriterError = string(pipeline.WriterErrorContinue)
	}
}

func (c *PipelineConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", c.QueueCapacity)
	}
	if _, err := pipeline.ParseMalformedPolicy(c.OnMalformed); err != nil {
		return err
	}
	if _, err := pipeline.ParseWriterErrorPolicy(c.OnWriterError); err != nil {
		return err
	}
	return nil
}

// Policies returns the parsed decoder and dispatcher policies.
func (c *PipelineConfig) Policies() (pipeline.MalformedPolicy, pipeline.WriterErrorPolicy) {
	m, _ := pipeline.ParseMalformedPolicy(c.OnMalformed)
	w, _ := pipeline.ParseWriterErrorPolicy(c.OnWriterError)
	return m, w
}
