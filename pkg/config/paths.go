package config

import (
	"os"
	"path/filepath"
)

// defaultCredentialFile places the credential under the user config dir,
// falling back to the working directory when none is available.
func defaultCredentialFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".event-studio-credential.json"
	}
	return filepath.Join(dir, "event-studio", "credential.json")
}
