// Package config loads, defaults, and validates voiceforge configuration.
//
// Configuration lives in a TOML file, by default at
// ~/.config/voiceforge/config.toml. Load tolerates a missing file and
// returns pure defaults so first-run commands work before setup. Validate
// reports every problem at once rather than failing on the first.
package config
