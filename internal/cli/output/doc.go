// Package output provides output formatting for mbaas-cli.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: key/value table rendering for structs and maps
//   - json.go: JSON output formatting
//   - yaml.go: YAML output formatting
//
// Field names come from yaml tags, so every format labels a field the same
// way. Nested structs are flattened into dotted keys in table output.
package output
