package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// GatewayConfig configures the client of the remote cart service.
// CallTimeout bounds a whole gateway call including retries; AttemptTimeout bounds a single HTTP attempt.
type GatewayConfig struct {
	BaseURL        string        `koanf:"baseurl"`
	CallTimeout    time.Duration `koanf:"calltimeout"`
	AttemptTimeout time.Duration `koanf:"attempttimeout"`
}

// String returns a string representation of the gateway configuration.
func (c *GatewayConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Cart Gateway ---\n")
	b.WriteString(fmt.Sprintf("  baseurl: %s\n", c.BaseURL))
	b.WriteString(fmt.Sprintf("  calltimeout: %s\n", c.CallTimeout))
	b.WriteString(fmt.Sprintf("  attempttimeout: %s\n", c.AttemptTimeout))
	return b.String()
}

func (c *GatewayConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("cart gateway base URL is not configured")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("cart gateway base URL must be an absolute http(s) URL: %s", c.BaseURL)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("cart gateway call timeout is not configured")
	}
	if c.AttemptTimeout <= 0 {
		return fmt.Errorf("cart gateway attempt timeout is not configured")
	}
	if c.AttemptTimeout > c.CallTimeout {
		return fmt.Errorf("cart gateway attempt timeout %s exceeds call timeout %s", c.AttemptTimeout, c.CallTimeout)
	}
	return nil
}
