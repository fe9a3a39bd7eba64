// Package config loads gdocs-mcp settings from a JSON or YAML file and
// resolves the token, credentials and cache paths the rest of the program
// uses.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "GDOCS_MCP_CONFIG"

// Default OAuth scopes. Drive is enough for search, list and export; the
// Docs scope backs the structured read used by the save command.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/documents.readonly",
}

// Config holds the runtime configuration. All keys are optional.
type Config struct {
	// TokenPath is the persisted OAuth token (authorized-user JSON).
	TokenPath string `json:"token_path,omitempty" yaml:"token_path,omitempty"`

	// CredentialsPath is the OAuth client-secret file from Google Cloud Console.
	CredentialsPath string `json:"credentials_path,omitempty" yaml:"credentials_path,omitempty"`

	// Scopes overrides DefaultScopes.
	Scopes []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`

	// CacheDir is where exported document text is saved.
	CacheDir string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// path is the file the config was loaded from, empty for defaults.
	path string
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Load reads the config file at path. Files ending in .yaml or .yml are
// decoded as YAML, anything else as JSON. An empty path yields defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		if err := cfg.ApplyDefaults(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg.path = abs

	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Discover returns the first config file found in the usual places:
// $GDOCS_MCP_CONFIG, ./config/default.json, then the user config directory.
// It returns "" when none exists.
func Discover() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}

	candidates := []string{filepath.Join("config", "default.json")}
	if dir, err := userConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "config.json"))
	}
	for _, p := range candidates {
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// ProjectRoot is the directory relative paths are resolved against. A config
// stored as <root>/config/<name>.json has root <root>; otherwise the config
// file's directory is used. Without a config file it is the user config
// directory.
func (c *Config) ProjectRoot() (string, error) {
	if c.path == "" {
		return userConfigDir()
	}
	dir := filepath.Dir(c.path)
	if filepath.Base(dir) == "config" {
		return filepath.Dir(dir), nil
	}
	return dir, nil
}

// ApplyDefaults fills in unset fields and makes every path absolute.
func (c *Config) ApplyDefaults() error {
	root, err := c.ProjectRoot()
	if err != nil {
		return err
	}

	// Files live next to the config in <root>/config, or directly in the
	// user config directory when running without a config file.
	fileDir := root
	if c.path != "" {
		fileDir = filepath.Join(root, "config")
	}

	explicitToken := c.TokenPath != ""
	explicitCreds := c.CredentialsPath != ""

	if explicitCreds {
		c.CredentialsPath = resolve(root, c.CredentialsPath)
	} else {
		c.CredentialsPath = filepath.Join(fileDir, "credentials.json")
		if !fileExists(c.CredentialsPath) {
			if alt := findCredentials(); alt != "" {
				c.CredentialsPath = alt
			}
		}
	}

	if explicitToken {
		c.TokenPath = resolve(root, c.TokenPath)
	} else {
		// The token follows the credentials file when one was found
		// somewhere other than the primary location.
		c.TokenPath = filepath.Join(filepath.Dir(c.CredentialsPath), "token.json")
	}

	if len(c.Scopes) == 0 {
		c.Scopes = append([]string(nil), DefaultScopes...)
	}

	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(root, "gdocs_cache")
	} else {
		c.CacheDir = resolve(root, c.CacheDir)
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return c.Validate()
}

// Validate checks the configuration for obviously wrong values.
func (c *Config) Validate() error {
	for _, s := range c.Scopes {
		if strings.TrimSpace(s) == "" {
			return errors.New("scopes must not contain empty entries")
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.TokenPath == c.CredentialsPath {
		return fmt.Errorf("token_path and credentials_path must differ (both %s)", c.TokenPath)
	}
	return nil
}

// findCredentials looks for a client-secret file in the fallback locations.
func findCredentials() string {
	var candidates []string
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, "config", "credentials.json"))
	}
	if dir, err := userConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "credentials.json"))
	}
	for _, p := range candidates {
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func userConfigDir() (string, error) {
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		xdg = filepath.Join(home, ".config")
	}
	return filepath.Join(xdg, "gdocs-mcp"), nil
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
