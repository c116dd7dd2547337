// Package config loads application settings from SCRY_-prefixed environment
// variables and an optional config.yaml, applies defaults and validates the
// result.
package config
