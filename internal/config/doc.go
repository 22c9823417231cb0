// Package config loads and validates the server's YAML configuration and
// supports hot reload of the parts that are safe to change at runtime.
package config
