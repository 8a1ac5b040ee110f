// Package confloader provides configuration loading mechanism.
//
// This package implements a configuration loader on top of koanf that
// merges several sources into one typed struct.
//
// Priority (highest to lowest):
//
//  1. Overrides (command-line flags)
//  2. Environment variables (MBAAS_ prefix)
//  3. Configuration file (YAML)
//  4. Default values already present in the target struct
//
// Watcher reports changes to configuration files so long-running commands
// can reapply settings such as the log level.
package confloader
