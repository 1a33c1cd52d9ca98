package configloader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string `koanf:"name"`
	Gateway struct {
		BaseURL string        `koanf:"baseurl"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"gateway"`
}

func (c testConfig) Validate() error {
	if c.Gateway.BaseURL == "" {
		return errors.New("base url is required")
	}
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFrom(t *testing.T) {
	t.Run("yaml file only", func(t *testing.T) {
		// given
		dir := t.TempDir()
		yml := writeFile(t, dir, "config.yaml", "name: cartsync\ngateway:\n  baseurl: http://yaml\n  timeout: 3s\n")

		// when
		cfg, err := LoadFrom[testConfig]("cfgtest", Sources{ConfigFile: yml})

		// then
		require.NoError(t, err)
		assert.Equal(t, "cartsync", cfg.Name)
		assert.Equal(t, "http://yaml", cfg.Gateway.BaseURL)
		assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout)
	})

	t.Run("env file overrides yaml", func(t *testing.T) {
		// given
		dir := t.TempDir()
		yml := writeFile(t, dir, "config.yaml", "gateway:\n  baseurl: http://yaml\n")
		envFile := writeFile(t, dir, ".env", "CFGTEST_GATEWAY_BASEURL=http://dotenv\nOTHER_NAME=ignored\n")

		// when
		cfg, err := LoadFrom[testConfig]("cfgtest", Sources{ConfigFile: yml, EnvFile: envFile})

		// then
		require.NoError(t, err)
		assert.Equal(t, "http://dotenv", cfg.Gateway.BaseURL)
		assert.Empty(t, cfg.Name)
	})

	t.Run("system env has the highest priority", func(t *testing.T) {
		// given
		dir := t.TempDir()
		yml := writeFile(t, dir, "config.yaml", "gateway:\n  baseurl: http://yaml\n")
		envFile := writeFile(t, dir, ".env", "CFGTEST_GATEWAY_BASEURL=http://dotenv\n")
		t.Setenv("CFGTEST_GATEWAY_BASEURL", "http://system")

		// when
		cfg, err := LoadFrom[testConfig]("cfgtest", Sources{ConfigFile: yml, EnvFile: envFile})

		// then
		require.NoError(t, err)
		assert.Equal(t, "http://system", cfg.Gateway.BaseURL)
	})

	t.Run("missing files are skipped and validation runs", func(t *testing.T) {
		// given
		dir := t.TempDir()

		// when
		_, err := LoadFrom[testConfig]("cfgtest", Sources{
			ConfigFile: filepath.Join(dir, "absent.yaml"),
			EnvFile:    filepath.Join(dir, "absent.env"),
		})

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation failed")
	})
}
