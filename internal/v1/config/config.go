// Package config holds the server's runtime configuration.
package config

import (
	"fmt"
	"strings"
)

// Config is populated from flags and environment by the command layer.
type Config struct {
	// ListenAddress is the host:port the HTTP server binds.
	ListenAddress string
	// JWTSigningKey signs and verifies passcodes.
	JWTSigningKey string
	// LocationsPath points at the newline-delimited JSON location catalog.
	LocationsPath string
	// QuickwitURL enables log shipping when non-empty.
	QuickwitURL string
	// AllowedOrigins is the CORS and WebSocket origin allow-list. Empty
	// means any origin, for development.
	AllowedOrigins []string
	// Development switches the logger to its human-readable output.
	Development bool
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.JWTSigningKey == "" {
		return fmt.Errorf("jwt signing key must not be empty")
	}
	if len(c.JWTSigningKey) < 16 {
		return fmt.Errorf("jwt signing key must be at least 16 bytes")
	}
	if c.LocationsPath == "" {
		return fmt.Errorf("locations path must not be empty")
	}
	for _, origin := range c.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("allowed origins must not contain empty entries")
		}
	}
	return nil
}
