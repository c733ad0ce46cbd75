package config

import (
	"github.com/clinvera/regflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Templates: container.TemplatesConfig{
			Path: c.Templates.Path,
		},
		Approval: container.ApprovalConfig{
			RejectionFatal: c.Approval.RejectionFatal,
		},
		EventBus: container.EventBusConfig{
			BufferSize: c.EventBus.BufferSize,
		},
	}
}
