// Package config provides configuration management for magictunneld.
//
// The top-level process configuration (frontend transport, registry conflict
// policy, embedding and discovery tuning) lives in a single config.yaml
// loaded with LoadConfig. Capability and external-server definitions are not
// part of that file: capability definitions are individual YAML files under
// ConfigDir/capabilities, walked by the capability loader
// (internal/capabilities), and external-server descriptors are read from the
// single file ConfigDir/mcpservers.yaml by internal/external. The generic
// LoadAndParseYAML helper walks one subdirectory of YAML files; neither of
// those loaders calls it.
//
// # Partial success
//
// A malformed or invalid file in a directory walked by LoadAndParseYAML
// never aborts the walk. Each failure is recorded as a ConfigurationError
// with a Source (the subdirectory walked) and an ErrorKind, accumulated into
// a ConfigurationErrorCollection and returned alongside whatever entries did
// load successfully.
package config
