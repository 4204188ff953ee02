package platform

import (
	"fmt"
	"os"
	"strings"
)

// Autostarter registers the daemon as a login item.
type Autostarter interface {
	EnableAutostart(appName, execPath string) error
	DisableAutostart(appName string) error
}

// Service bundles the OS-specific helpers the app needs.
type Service interface {
	Autostarter
	ConfigDir() (string, error)
}

type platformService struct {
	// configDir overrides the OS config directory; tests point it at a temp dir.
	configDir string
}

func NewService() Service { return &platformService{} }

// ConfigDir returns the OS-standard configuration directory.
func (s *platformService) ConfigDir() (string, error) {
	if s.configDir != "" {
		return s.configDir, nil
	}
	dir, err := os.UserConfigDir()
	if err == nil && dir != "" {
		return dir, nil
	}
	home, homeErr := os.UserHomeDir()
	if homeErr != nil {
		if err != nil {
			return "", fmt.Errorf("config dir: %w", err)
		}
		return "", fmt.Errorf("config dir: %w", homeErr)
	}
	return fallbackConfigDir(home), nil
}

// Apply enables or disables autostart for the running executable.
func Apply(a Autostarter, appName string, enabled bool) error {
	if a == nil {
		return nil
	}
	if !enabled {
		return a.DisableAutostart(appName)
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("autostart: resolve executable: %w", err)
	}
	return a.EnableAutostart(appName, exe)
}

func slug(appName string) string {
	name := strings.ToLower(strings.TrimSpace(appName))
	if name == "" {
		name = "stretchbot"
	}
	return strings.ReplaceAll(name, " ", "-")
}
