package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gopher-mcp/internal/address"
	"github.com/starford/gopher-mcp/internal/gopher"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app" toml:"app"`
	Auth   AuthConfig        `yaml:"auth" toml:"auth"`
	Cache  CacheConfig       `yaml:"cache" toml:"cache"`
	Gopher GopherConfig      `yaml:"gopher" toml:"gopher"`
	Gemini GeminiConfig      `yaml:"gemini" toml:"gemini"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Gopher.Validate(); err != nil {
		return fmt.Errorf("gopher: %w", err)
	}
	if err := c.Gemini.Validate(); err != nil {
		return fmt.Errorf("gemini: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level" toml:"log_level"`
	Transport string     `yaml:"transport" toml:"transport"`
	HTTP      HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Transport == "" {
		c.Transport = TransportStdio
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Transport, validation.In(TransportStdio, TransportHTTP)),
	); err != nil {
		return err
	}
	if c.Transport != TransportHTTP {
		return nil
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
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

// AuthConfig holds authentication configuration for the HTTP transport.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// CacheConfig sizes the result cache shared by both protocols.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" toml:"max_entries"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxEntries, validation.Required, validation.Min(1)),
	)
}

// TransportConfig holds the settings common to both protocols.
type TransportConfig struct {
	MaxResponseSize int64         `yaml:"max_response_size" toml:"max_response_size"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" toml:"connect_timeout"`
	Timeout         time.Duration `yaml:"timeout" toml:"timeout"`
	AllowedHosts    []string      `yaml:"allowed_hosts" toml:"allowed_hosts"`
	CacheEnabled    bool          `yaml:"cache_enabled" toml:"cache_enabled"`
	CacheTTL        time.Duration `yaml:"cache_ttl" toml:"cache_ttl"`
}

// Validate validates the transport settings.
func (c *TransportConfig) Validate() error {
	rules := []*validation.FieldRules{
		validation.Field(&c.MaxResponseSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.ConnectTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
	}
	if c.CacheEnabled {
		rules = append(rules, validation.Field(&c.CacheTTL, validation.Required, validation.Min(time.Second)))
	}
	return validation.ValidateStruct(c, rules...)
}

// Allowlist builds the host allowlist.
func (c *TransportConfig) Allowlist() address.Allowlist {
	return address.NewAllowlist(c.AllowedHosts)
}

// GopherConfig holds gopher fetch settings.
type GopherConfig struct {
	TransportConfig   `yaml:",inline"`
	MaxSelectorLength int    `yaml:"max_selector_length" toml:"max_selector_length"`
	MaxSearchLength   int    `yaml:"max_search_length" toml:"max_search_length"`
	FallbackCharset   string `yaml:"fallback_charset" toml:"fallback_charset"`
}

// Validate validates the gopher configuration.
func (c *GopherConfig) Validate() error {
	if err := c.TransportConfig.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MaxSelectorLength, validation.Min(0), validation.Max(address.MaxSelectorLength)),
		validation.Field(&c.MaxSearchLength, validation.Min(0), validation.Max(address.MaxQueryLength)),
	); err != nil {
		return err
	}
	if c.FallbackCharset != "" {
		if _, err := gopher.LookupCharset(c.FallbackCharset); err != nil {
			return err
		}
	}
	return nil
}

// Limits returns the address limits for gopher URLs.
func (c *GopherConfig) Limits() address.Limits {
	return address.Limits{MaxSelector: c.MaxSelectorLength, MaxQuery: c.MaxSearchLength}
}

// GeminiConfig holds gemini fetch settings.
type GeminiConfig struct {
	TransportConfig `yaml:",inline"`
	VerifyHostname  bool              `yaml:"verify_hostname" toml:"verify_hostname"`
	TOFU            TOFUConfig        `yaml:"tofu" toml:"tofu"`
	ClientCerts     ClientCertsConfig `yaml:"client_certs" toml:"client_certs"`
}

// Validate validates the gemini configuration.
func (c *GeminiConfig) Validate() error {
	if err := c.TransportConfig.Validate(); err != nil {
		return err
	}
	if c.TOFU.Enabled && c.TOFU.Path == "" {
		return errors.New("tofu: enabled but path is empty")
	}
	if c.ClientCerts.Enabled && c.ClientCerts.Dir == "" {
		return errors.New("client_certs: enabled but dir is empty")
	}
	return nil
}

// TOFUConfig holds the trust store settings.
type TOFUConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// ClientCertsConfig holds the client certificate directory settings.
type ClientCertsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Dir     string `yaml:"dir" toml:"dir"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	transport := TransportConfig{
		MaxResponseSize: 1 << 20,
		ConnectTimeout:  10 * time.Second,
		Timeout:         30 * time.Second,
		CacheEnabled:    true,
		CacheTTL:        5 * time.Minute,
	}
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			Transport: TransportStdio,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Cache: CacheConfig{
			MaxEntries: 1000,
		},
		Gopher: GopherConfig{
			TransportConfig:   transport,
			MaxSelectorLength: address.MaxSelectorLength,
			MaxSearchLength:   address.MaxQueryLength,
		},
		Gemini: GeminiConfig{
			TransportConfig: transport,
			TOFU: TOFUConfig{
				Enabled: true,
				Path:    filepath.Join(".", "gopher-mcp-trust.db"),
			},
			ClientCerts: ClientCertsConfig{
				Dir: filepath.Join(".", "client-certs"),
			},
		},
	}
}
