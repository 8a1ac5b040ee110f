// Package config defines the mbaas-cli configuration.
//
//   - config.go: Config struct (~/.mbaas/cli.yaml) and defaults
//   - loader.go: loading through confloader, validation and saving
//
// Sources are merged with priority flag > environment (MBAAS_*) > file >
// default.
package config
