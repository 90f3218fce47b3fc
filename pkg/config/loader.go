package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/kkyr/fig"
)

const (
	EnvPrefix = "SLINGSHOT"
	FileName  = "config.yaml"
)

var ErrNoConfig = errors.New("config file not found")

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom path to the configuration file
// (either a file or a directory with config.yaml inside).
// Reads and puts environment variables with the prefix SLINGSHOT_.
// Params from the config should be in uppercase separated with _.
// Returns the path of the file that was actually loaded.
func LoadConfig(config any, path string) (string, error) {
	file, err := findConfig(path)
	if err != nil {
		return "", err
	}
	dir, name := filepath.Split(file)
	if dir == "" {
		dir = "."
	}
	if err = fig.Load(config, fig.File(name), fig.Dirs(dir), fig.UseEnv(EnvPrefix)); err != nil {
		return "", err
	}
	return file, nil
}

func findConfig(path string) (string, error) {
	var dirs []string
	if path != "" {
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path, nil
		}
		dirs = append(dirs, path)
	} else {
		dirs = append(dirs, ".", "configs", "../../configs")
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, filepath.Join(home, ".slingshot"))
		}
	}
	for _, dir := range dirs {
		file := filepath.Join(dir, FileName)
		if _, err := os.Stat(file); err == nil {
			return file, nil
		}
	}
	return "", ErrNoConfig
}
