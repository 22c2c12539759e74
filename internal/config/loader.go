package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/giantswarm/magictunnel/pkg/logging"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the main config.yaml from configFilePath, falling back to
// DefaultConfig() when the file does not exist (spec.md §6: "Configuration
// file path via a single argument").
func LoadConfig(configFilePath string) (TunnelConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config file at %s, using defaults", configFilePath)
			return cfg, nil
		}
		return TunnelConfig{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return TunnelConfig{}, fmt.Errorf("error parsing config from %s: %w", configFilePath, err)
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)

	if cfg.Embedding.APIKeyFile != "" {
		key, err := readSecretFile(cfg.Embedding.APIKeyFile)
		if err != nil {
			return TunnelConfig{}, fmt.Errorf("failed to read embedding API key from %s: %w", cfg.Embedding.APIKeyFile, err)
		}
		cfg.embeddingAPIKey = key
	}

	if cfg.Discovery.APIKeyFile != "" {
		key, err := readSecretFile(cfg.Discovery.APIKeyFile)
		if err != nil {
			return TunnelConfig{}, fmt.Errorf("failed to read llm API key from %s: %w", cfg.Discovery.APIKeyFile, err)
		}
		cfg.llmAPIKey = key
	}

	return cfg, nil
}

// EmbeddingAPIKey returns the API key resolved from EmbeddingConfig.APIKeyFile
// during LoadConfig. It is kept out of the YAML-serializable struct fields so
// that marshaling TunnelConfig back out never re-emits a secret.
func (c TunnelConfig) EmbeddingAPIKey() string { return c.embeddingAPIKey }

// LLMAPIKey returns the API key resolved from DiscoveryConfig.APIKeyFile
// during LoadConfig, for the same reason EmbeddingAPIKey is kept unexported.
func (c TunnelConfig) LLMAPIKey() string { return c.llmAPIKey }

// readSecretFile reads a secret from a file, trimming trailing whitespace
// commonly present in mounted secret files.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ErrorKind enumerates the capability-loader failure kinds named in
// spec.md §4.1.
type ErrorKind string

const (
	ErrorKindIO                ErrorKind = "io"
	ErrorKindParse             ErrorKind = "parse"
	ErrorKindSchema            ErrorKind = "schema"
	ErrorKindTemplateReference ErrorKind = "template_reference"
	ErrorKindDuplicateName     ErrorKind = "duplicate_name"
)

// LoadAndParseYAML walks configRoot/subdir for *.yaml/*.yml files, unmarshals
// each whole file into a T, runs validate on every parsed entry, and returns
// the valid entries plus a collection describing every file-level failure.
//
// A failure in one file never aborts the walk (spec.md §4.1 "partial
// success: a file-level error fails that file only; other files continue
// loading").
func LoadAndParseYAML[T any](configRoot, subdir string, validate func(T) error) ([]T, *ConfigurationErrorCollection, error) {
	errColl := NewConfigurationErrorCollection()
	dir := filepath.Join(configRoot, subdir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errColl, nil
		}
		return nil, errColl, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var results []T
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		filePath := filepath.Join(dir, name)
		data, err := os.ReadFile(filePath)
		if err != nil {
			errColl.Add(NewConfigurationError(filePath, name, subdir, subdir, string(ErrorKindIO), err.Error()))
			continue
		}

		var parsed T
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			errColl.Add(NewConfigurationError(filePath, name, subdir, subdir, string(ErrorKindParse), err.Error()))
			continue
		}

		if err := validate(parsed); err != nil {
			errColl.Add(NewConfigurationError(filePath, name, subdir, subdir, string(ErrorKindSchema), err.Error()))
			continue
		}

		results = append(results, parsed)
	}

	return results, errColl, nil
}
