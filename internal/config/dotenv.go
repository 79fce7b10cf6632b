package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv exports variables from .env.local and then .env in dir. A
// variable that is already set is never overridden, so explicit env wins over
// .env.local, which wins over .env. It returns the source of every variable
// it exported.
func loadDotEnv(dir string) (map[string]FieldSource, error) {
	exported := map[string]FieldSource{}
	for _, f := range []struct {
		name   string
		source FieldSource
	}{
		{".env.local", SourceDotEnvLocal},
		{".env", SourceDotEnv},
	} {
		values, err := readDotFile(filepath.Join(dir, f.name))
		if err != nil {
			return nil, err
		}
		for k, v := range values {
			if existing, ok := os.LookupEnv(k); ok && strings.TrimSpace(existing) != "" {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return nil, err
			}
			exported[k] = f.source
		}
	}
	return exported, nil
}

// readDotFile reads a dotenv file. A missing file yields no values.
func readDotFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return godotenv.Read(path)
}
