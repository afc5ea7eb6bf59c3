package transfer

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic writes content via tmp file → fsync → rename so a
// crashed export never leaves a truncated document behind.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("transfer: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".noteforge-tmp-*")
	if err != nil {
		return fmt.Errorf("transfer: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("transfer: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("transfer: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("transfer: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("transfer: rename: %w", err)
	}
	success = true
	return nil
}
