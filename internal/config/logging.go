package config

import "psl/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level,omitempty"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format,omitempty"` // json, console
	File   string `yaml:"file" json:"file,omitempty"`     // optional extra output

	// AuditFile receives one JSON line per snapshot, access denial, term
	// pass and commit. Empty disables the audit trail.
	AuditFile string `yaml:"audit_file,omitempty" json:"audit_file,omitempty"`

	// Per-category toggles
	Categories map[string]bool `yaml:"categories,omitempty" json:"categories,omitempty"`
}

// ToLogging converts to the logging package's configuration.
func (c *LoggingConfig) ToLogging() logging.Config {
	return logging.Config{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		Categories: c.Categories,
	}
}
