package mpv

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// mpv is driven over its JSON IPC server on a unix socket. Each engine
// instance gets its own socket under the temp dir.

func findExecutable() (string, error) {
	path, err := exec.LookPath("mpv")
	if err != nil {
		return "", fmt.Errorf("mpv not found in PATH: %w", err)
	}
	return path, nil
}

func newSocketPath() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	suffix := hex.EncodeToString(b)
	return filepath.Join(os.TempDir(), fmt.Sprintf("provideo-mpv-%s.sock", suffix)), nil
}

func ipcArgument(socketPath string) string {
	return fmt.Sprintf("--input-ipc-server=%s", socketPath)
}
