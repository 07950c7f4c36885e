package internal

import "log/slog"

// Option configures the application before Run or RunMCP starts it.
type Option func(*application)

type application struct {
	config *Config
	logger *slog.Logger
}

// WithConfig supplies the loaded configuration. Required.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger overrides the default JSON logger, mainly for tests.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}
