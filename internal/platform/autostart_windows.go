//go:build windows

package platform

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

const runKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`

func (s *platformService) EnableAutostart(appName, execPath string) error {
	if appName == "" {
		return fmt.Errorf("enable autostart: app name is empty")
	}
	if execPath == "" {
		return fmt.Errorf("enable autostart: exec path is empty")
	}
	quoted := `"` + strings.Trim(execPath, `"`) + `"`
	out, err := exec.Command("reg", "add", runKey, "/v", appName, "/t", "REG_SZ", "/d", quoted, "/f").CombinedOutput()
	if err != nil {
		return fmt.Errorf("enable autostart: reg add: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *platformService) DisableAutostart(appName string) error {
	if appName == "" {
		return fmt.Errorf("disable autostart: app name is empty")
	}
	out, err := exec.Command("reg", "delete", runKey, "/v", appName, "/f").CombinedOutput()
	if err != nil {
		text := strings.TrimSpace(string(out))
		// reg exits non-zero when the value is already absent.
		if strings.Contains(strings.ToLower(text), "unable to find") {
			return nil
		}
		return fmt.Errorf("disable autostart: reg delete: %w: %s", err, text)
	}
	return nil
}

func fallbackConfigDir(home string) string { return filepath.Join(home, "AppData", "Roaming") }
