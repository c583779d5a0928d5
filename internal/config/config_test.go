package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_ParsesAndTrims(t *testing.T) {
	path := writeConfig(t, `
server = "  ohq.example.edu  "
course = 3
token = "  secret  "
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server != "ohq.example.edu" {
		t.Fatalf("Server = %q, want %q", cfg.Server, "ohq.example.edu")
	}
	if cfg.CourseID != 3 {
		t.Fatalf("CourseID = %d, want 3", cfg.CourseID)
	}
	if cfg.Token != "secret" {
		t.Fatalf("Token = %q, want %q", cfg.Token, "secret")
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err == nil {
		t.Fatalf("Load returned nil error, want missing-config error")
	}
	if !strings.Contains(err.Error(), "config not found") {
		t.Fatalf("Load error = %q, want it to mention the missing config", err.Error())
	}
}

func TestLoad_RequiredFields(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"missing server", "course = 3\n"},
		{"missing course", "server = \"ohq.example.edu\"\n"},
		{"blank server", "server = \"  \"\ncourse = 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.contents)); err == nil {
				t.Fatalf("Load returned nil error, want required-field error")
			}
		})
	}
}

func TestLoad_TokenFile(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenPath, []byte("from-file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	path := writeConfig(t, `
server = "ohq.example.edu"
course = 3
token_file = "`+tokenPath+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Token != "from-file" {
		t.Fatalf("Token = %q, want trimmed token_file contents", cfg.Token)
	}
}

func TestLoad_InlineTokenWinsOverTokenFile(t *testing.T) {
	path := writeConfig(t, `
server = "ohq.example.edu"
course = 3
token = "inline"
token_file = "/nonexistent/token"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Token != "inline" {
		t.Fatalf("Token = %q, want %q", cfg.Token, "inline")
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	_, err := Load(writeConfig(t, `server = [`))
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		name   string
		server string
		want   string
	}{
		{"https to wss", "https://ohq.example.edu", "wss://ohq.example.edu/api/ws/subscribe/"},
		{"http to ws", "http://localhost:8000", "ws://localhost:8000/api/ws/subscribe/"},
		{"bare host defaults to wss", "ohq.example.edu", "wss://ohq.example.edu/api/ws/subscribe/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Config{Server: tt.server}.WebsocketURL()
			if err != nil {
				t.Fatalf("WebsocketURL returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("WebsocketURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
