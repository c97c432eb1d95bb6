package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// StoreEnvVar overrides the default event store location.
const StoreEnvVar = "RESEARCH_TRACE_STORE"

// ResolveStorePath picks the event store database path: explicit flag first,
// then the environment override, then the per-OS default.
func ResolveStorePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv(StoreEnvVar); env != "" {
		return env, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library/Application Support/research-trace/events.db"), nil
	case "linux":
		if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
			return filepath.Join(dataHome, "research-trace/events.db"), nil
		}
		return filepath.Join(home, ".local/share/research-trace/events.db"), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s (only macOS and Linux are supported)", runtime.GOOS)
	}
}

// StoreExists checks whether the event store database is present.
func StoreExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DefaultCacheDir returns where reconstructed transcripts are cached.
func DefaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".research-trace-cache"), nil
}
