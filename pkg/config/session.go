package config

import (
	"fmt"
	"strings"
	"time"
)

// SessionConfig holds the bearer token issued at login and the tolerated clock skew for its expiry.
type SessionConfig struct {
	Token     string        `koanf:"token"`
	ClockSkew time.Duration `koanf:"clockskew"`
}

// String returns a string representation of the session configuration with the token masked.
func (c *SessionConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Session ---\n")
	b.WriteString(fmt.Sprintf("  token: %s\n", maskToken(c.Token)))
	b.WriteString(fmt.Sprintf("  clockskew: %s\n", c.ClockSkew))
	return b.String()
}

func (c *SessionConfig) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("session token cannot be empty")
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("session clock skew cannot be negative")
	}
	return nil
}

func maskToken(token string) string {
	if token == "" {
		return "<not configured>"
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****"
}
