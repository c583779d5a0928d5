package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the fields ohqtui needs to reach the queue server.
type Config struct {
	Server   string
	CourseID int64
	Token    string
}

const defaultConfigPath = "~/.config/ohqtui/config.toml"

// Load locates and parses the config file. Unlike preferences, a
// missing or unreadable config is an error: without a server and a
// course there is nothing to show.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config not found at %s (create it with server, course, and token)", resolved)
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Server    string `toml:"server"`
		Course    int64  `toml:"course"`
		Token     string `toml:"token"`
		TokenFile string `toml:"token_file"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Config{
		Server:   strings.TrimSpace(raw.Server),
		CourseID: raw.Course,
		Token:    strings.TrimSpace(raw.Token),
	}
	if cfg.Server == "" {
		return Config{}, fmt.Errorf("config: server is required")
	}
	if cfg.CourseID <= 0 {
		return Config{}, fmt.Errorf("config: course is required")
	}

	if cfg.Token == "" && strings.TrimSpace(raw.TokenFile) != "" {
		tokenPath, err := expandPath(raw.TokenFile)
		if err != nil {
			return Config{}, fmt.Errorf("resolve token_file: %w", err)
		}
		token, err := os.ReadFile(tokenPath)
		if err != nil {
			return Config{}, fmt.Errorf("read token_file: %w", err)
		}
		cfg.Token = strings.TrimSpace(string(token))
	}

	return cfg, nil
}

// WebsocketURL derives the push channel endpoint from the server URL.
func (c Config) WebsocketURL() (string, error) {
	server := c.Server
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url %q: %w", c.Server, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/api/ws/subscribe/"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
