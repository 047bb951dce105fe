package launcher

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"github.com/mattn/go-shellwords"
)

// ErrEmptyCommand is returned for a command line without words.
var ErrEmptyCommand = errors.New("empty exec command")

// ExecSpawner starts commands in a new session with all standard streams on
// the null device, so they outlive the launcher and never write to it.
type ExecSpawner struct{}

// Spawn implements Spawner
func (ExecSpawner) Spawn(command, dir string) (int, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", command, err)
	}
	if len(args) == 0 {
		return 0, ErrEmptyCommand
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	pid := cmd.Process.Pid
	// Reap the child so a long-running host does not collect zombies
	go cmd.Wait()

	return pid, nil
}
