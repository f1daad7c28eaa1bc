// Package config handles configuration loading for batchtalk.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from BATCHTALK_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. ~/.config/batchtalk/server.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${BATCHTALK_JWT_SECRET}"
//
// Unset variables expand to the empty string, which then fails validation
// for required fields.
//
// # Durations
//
// Duration values use Go's duration syntax ("3s", "500ms"). The presence
// TTL defaults to the tracker's built-in value when omitted.
package config
