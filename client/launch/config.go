package launch

import (
	"fmt"

	"github.com/0xADE/ade-launch/internal/config"
)

// SocketPath returns the daemon socket, honouring ADE_LAUNCH_SOCK.
func SocketPath() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg.UnixSocket(), nil
}
