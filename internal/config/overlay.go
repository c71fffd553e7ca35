// config/overlay.go
package config

import (
	"dario.cat/mergo"
)

// Overlay copies every non-zero field of o onto cfg. CLI flags and API
// requests build a sparse Config and overlay it for a single run.
func Overlay(cfg *Config, o Config) error {
	return mergo.Merge(cfg, o, mergo.WithOverride)
}
