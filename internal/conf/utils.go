// conf/utils.go shared helpers for config paths and names
package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tsanev/camguard-go/internal/errors"
)

const osWindows = "windows"

// GetDefaultConfigPaths returns OS specific paths searched for config.yaml.
// An environment override CAMGUARD_CONFIG_DIR takes precedence.
func GetDefaultConfigPaths() ([]string, error) {
	if dir := os.Getenv("CAMGUARD_CONFIG_DIR"); dir != "" {
		return []string{dir}, nil
	}

	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "camguard-go"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "camguard-go"),
			"/etc/camguard-go",
		}
	}

	return configPaths, nil
}

// GetBasePath expands a possibly relative directory against the current
// working directory and ensures it exists.
func GetBasePath(path string) string {
	if path == "" {
		path = "."
	}
	if !filepath.IsAbs(path) {
		if wd, err := os.Getwd(); err == nil {
			path = filepath.Join(wd, path)
		}
	}
	_ = os.MkdirAll(path, 0o755)
	return path
}

// SanitizeName converts a camera display name to a form safe for use in
// file names: spaces become underscores and path-hostile characters are
// dropped.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == ' ' || r == '\t':
			b.WriteByte('_')
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			// drop
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "camera"
	}
	return b.String()
}
