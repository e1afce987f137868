// Package config holds the proxy configuration loaded via viper.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the root configuration unmarshalled by viper.
type Config struct {
	// Bind is the address the proxy listens on for game clients.
	Bind string
	// Upstream is the real server every session connects to.
	Upstream string
	// Motd is the description shown in the client's server list.
	Motd string
	// Favicon is an optional path to a PNG shown in the server list.
	Favicon string
	// CacheDir holds credential and stats caches. Empty selects the
	// user cache directory.
	CacheDir string
	// HypixelAPIKey authorizes stat lookups. Empty disables enrichment
	// and /sc.
	HypixelAPIKey string

	// AccessToken, UUID and Username bypass the interactive Microsoft
	// login when all are set.
	AccessToken string
	UUID        string
	Username    string

	// ReadTimeout is the per-read deadline in milliseconds.
	ReadTimeout int
	// ConnectionTimeout is the write/dial deadline in milliseconds.
	ConnectionTimeout int

	Debug bool
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bind", "localhost:13876")
	v.SetDefault("upstream", "mc.hypixel.net:25565")
	v.SetDefault("motd", "hyproxy")
	v.SetDefault("readTimeout", 300000)
	v.SetDefault("connectionTimeout", 5000)
	v.SetDefault("debug", false)
}

// Validate checks c for configurations that can never work.
func Validate(c *Config) error {
	if _, _, err := net.SplitHostPort(c.Bind); err != nil {
		return fmt.Errorf("invalid bind address %q: %w", c.Bind, err)
	}
	if _, _, err := net.SplitHostPort(c.Upstream); err != nil {
		return fmt.Errorf("invalid upstream address %q: %w", c.Upstream, err)
	}
	if c.Favicon != "" {
		if _, err := os.Stat(c.Favicon); err != nil {
			return fmt.Errorf("favicon: %w", err)
		}
	}
	if (c.AccessToken != "" || c.UUID != "") &&
		(c.AccessToken == "" || c.UUID == "" || c.Username == "") {
		return fmt.Errorf("accessToken, uuid and username must be set together")
	}
	return nil
}

// ResolveCacheDir returns the cache directory, defaulting to the user
// cache dir, and creates it.
func (c *Config) ResolveCacheDir() (string, error) {
	dir := c.CacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "hyproxy")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
