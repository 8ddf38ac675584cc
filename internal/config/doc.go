// Package config loads, validates, and normalizes gnsstec configuration.
//
// Configuration is a TOML file resolved from an explicit path,
// ~/.config/gnsstec/config.toml, or ./gnsstec.toml. Missing files fall back
// to defaults so the daemon can run with nothing but a serial receiver and
// writable directories.
package config
