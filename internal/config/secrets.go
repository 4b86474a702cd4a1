package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Secrets are the values read from the secrets directory. The mapstructure tag
// is the file name holding each value.
type Secrets struct {
	MealieBaseURL     string `mapstructure:"MEALIE_BASE_URL_TS"`
	MealieToken       string `mapstructure:"MEALIE_AUTH_TOKEN"`
	NextcloudBaseURL  string `mapstructure:"NC_BASE_URL_TS"`
	NextcloudPassword string `mapstructure:"NC_PASS"`
}

// LoadSecrets reads every regular file in dir into a map keyed by file name.
// Values are trimmed of surrounding whitespace. A missing directory yields an
// empty map.
func LoadSecrets(dir string) (map[string]string, error) {
	secrets := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return secrets, nil
		}
		return nil, fmt.Errorf("read secrets directory %q: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read secret %q: %w", entry.Name(), err)
		}
		secrets[entry.Name()] = strings.TrimSpace(string(data))
	}
	return secrets, nil
}

// DecodeSecrets maps the raw secret files onto Secrets. Unknown files are ignored.
func DecodeSecrets(raw map[string]string) (Secrets, error) {
	var s Secrets
	if err := mapstructure.Decode(raw, &s); err != nil {
		return Secrets{}, err
	}
	return s, nil
}
