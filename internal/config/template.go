// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/provide-io/blocklaunch/internal/workenv"
)

// ErrConfigExists is returned by WriteTemplate when the target exists and
// overwriting was not requested.
var ErrConfigExists = errors.New("config file already exists")

const templateHeader = `# blocklaunch configuration
#
# Every key can be overridden with a BLOCKLAUNCH_* environment variable,
# nested keys joined by underscores (BLOCKLAUNCH_MEMORY_MAX_MB).

`

// Template renders cfg as a commented TOML document.
func Template(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(templateHeader)

	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTemplate writes cfg to path.
func WriteTemplate(path string, cfg *Config, force bool) error {
	if !force && fileExists(path) {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	data, err := Template(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), workenv.DirPerms); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return workenv.WriteFileAtomic(path, data)
}
