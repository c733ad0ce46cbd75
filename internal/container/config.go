// Package container provides dependency injection and lifecycle management
// for the workflow engine following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Server configuration
	Server ServerConfig

	// Templates configuration
	Templates TemplatesConfig

	// Approval configuration
	Approval ApprovalConfig

	// EventBus configuration
	EventBus EventBusConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// TemplatesConfig holds the workflow template catalog location.
type TemplatesConfig struct {
	// Path to the YAML template catalog
	Path string
}

// ApprovalConfig holds review gate settings.
type ApprovalConfig struct {
	// RejectionFatal terminates a workflow on the first reject decision
	RejectionFatal bool
}

// EventBusConfig holds event bus settings.
type EventBusConfig struct {
	// BufferSize is the per-subscriber delivery queue depth
	BufferSize int
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Templates.Path == "" {
		return fmt.Errorf("templates path is required")
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/regflow.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Templates: TemplatesConfig{
			Path: "configs/templates.yaml",
		},
		Approval: ApprovalConfig{
			RejectionFatal: true,
		},
		EventBus: EventBusConfig{
			BufferSize: 128,
		},
	}
}
