package config

import "github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"

// LoggerConfig converts the log section into logger construction parameters.
func (l LogConfig) LoggerConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:       l.Level,
		Format:      l.Format,
		OutputPaths: append([]string(nil), l.OutputPaths...),
		File: logging.FileConfig{
			Filename:   l.File.Filename,
			MaxSizeMB:  l.File.MaxSizeMB,
			MaxBackups: l.File.MaxBackups,
			MaxAgeDays: l.File.MaxAgeDays,
			Compress:   l.File.Compress,
		},
	}
}

//Personal.AI order the ending
