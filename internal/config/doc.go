// Package config handles loading and parsing the ohqtui configuration
// file.
//
// # Overview
//
// This package reads the TOML configuration that tells the client
// which queue server to talk to, which course to show, and how to
// authenticate. Unlike preferences, the config is required: there are
// no usable defaults for a server or a course.
//
// # Configuration Discovery
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/ohqtui/config.toml
//
// # TOML Format
//
//	server = "ohq.example.edu"
//	course = 1234
//	token = "..."            # or:
//	token_file = "~/.config/ohqtui/token"
//
// The server value may omit the scheme; https is assumed. The push
// channel endpoint is derived from the server URL by WebsocketURL
// (https -> wss).
//
// # Path Expansion
//
//   - Absolute paths: used as-is
//   - Tilde paths: expanded to the home directory
//   - Relative paths: converted to absolute from the current directory
//
// # Error Handling
//
// Load returns errors for missing files, unreadable token files, TOML
// parsing failures, and missing required fields. The config package is
// read-only and stateless: configuration is loaded once at startup
// into an immutable Config struct.
package config
