package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Auth        AuthConfig        `yaml:"auth"`
	Render      RenderConfig      `yaml:"render"`
	Seed        SeedConfig        `yaml:"seed"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Render.Validate(); err != nil {
		return err
	}
	return c.Maintenance.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): every request is treated as admin, suitable
//     for local single-user use.
//   - "token": Bearer token authentication with two tiers; Token (editor)
//     must be non-empty, AdminToken optionally unlocks delete/maintenance.
type AuthConfig struct {
	Mode       string `yaml:"mode"`
	Token      string `yaml:"token"`
	AdminToken string `yaml:"admin_token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	if c.Token != "" && c.Token == c.AdminToken {
		return fmt.Errorf("auth: editor and admin tokens must differ")
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// RenderConfig holds the rendering pipeline configuration.
type RenderConfig struct {
	// BasePath is the URL prefix of the fragment endpoints.
	BasePath string `yaml:"base_path"`
	// GlossaryBase is the base URL for non-knowl [[Topic]] wikilinks.
	GlossaryBase string `yaml:"glossary_base"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BasePath, validation.Required),
	)
}

// SeedConfig holds the optional seed-directory importer configuration.
type SeedConfig struct {
	// Path to a directory of seed Markdown files; empty disables seeding.
	Path string `yaml:"path"`
	// Watch keeps importing file changes while the server runs.
	Watch bool `yaml:"watch"`
}

// Enabled reports whether seeding is configured.
func (c *SeedConfig) Enabled() bool {
	return c.Path != ""
}

// MaintenanceConfig holds maintenance tunables.
type MaintenanceConfig struct {
	// LockTimeout is the advisory edit lock expiry.
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// Validate validates the maintenance configuration.
func (c *MaintenanceConfig) Validate() error {
	if c.LockTimeout < 0 {
		return fmt.Errorf("maintenance: lock_timeout must not be negative")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./knowld.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Render: RenderConfig{
			BasePath:     "/knowledge",
			GlossaryBase: "http://wiki.l-functions.org/",
		},
		Maintenance: MaintenanceConfig{
			LockTimeout: 30 * time.Minute,
		},
	}
}
