// Package config handles application configuration loading and validation.
//
// Configuration is read from a YAML file, overridden by environment variables
// (optionally loaded from a .env file) and validated using struct tags.
// Every field has a default, so running without a config file is supported.
package config
