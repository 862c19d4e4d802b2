package helpers

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	configapp "github.com/doeshing/opsguard/internal/application/config"
	"github.com/doeshing/opsguard/internal/domain"
	configinfra "github.com/doeshing/opsguard/internal/infrastructure/config"
)

// SaveConfig validates cfg, copies the current file aside and writes cfg in
// its place. It returns the backup path, empty when there was no file yet.
func SaveConfig(loader *configinfra.FileLoader, cfg domain.Config) (string, error) {
	if loader == nil {
		return "", errors.New("config loader unavailable")
	}
	if err := configapp.Validate(cfg); err != nil {
		return "", fmt.Errorf("refusing to save invalid configuration: %w", err)
	}

	var backup string
	if _, err := os.Stat(loader.Path()); err == nil {
		if backup, err = loader.Backup(); err != nil {
			return "", fmt.Errorf("back up %s: %w", loader.Path(), err)
		}
	}
	if err := loader.Save(cfg); err != nil {
		return backup, fmt.Errorf("write %s: %w", loader.Path(), err)
	}
	return backup, nil
}

// ConfigValue returns the YAML rendering of one dotted key, e.g. "ledger.backend".
func ConfigValue(cfg domain.Config, key string) (string, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return "", err
	}
	value, ok := TraverseNestedMap(tree, strings.Split(key, "."))
	if !ok {
		return "", fmt.Errorf("key %s: %w", key, domain.ErrNotFound)
	}
	out, err := yaml.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// TraverseNestedMap retrieves a value from a nested map using a key path
// Returns the value and true if found, nil and false otherwise
func TraverseNestedMap(data interface{}, keyPath []string) (interface{}, bool) {
	if len(keyPath) == 0 {
		return data, true
	}

	switch node := data.(type) {
	case map[string]interface{}:
		next, exists := node[keyPath[0]]
		if !exists {
			return nil, false
		}
		return TraverseNestedMap(next, keyPath[1:])
	default:
		return nil, false
	}
}
