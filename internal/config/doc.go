// Package config defines the node configuration value object and its
// loader.
//
//   - spec.go: Config struct definition (§6 configuration value object)
//   - default.go: default values
//   - verify.go: structural validation
//   - loader.go: koanf-based multi-source loading (file, then env)
package config
