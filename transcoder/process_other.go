//go:build !unix

package transcoder

import (
	"os"
	"os/exec"
)

func configureCommand(cmd *exec.Cmd) {}

func killProcess(p *os.Process) error {
	return p.Kill()
}

// Alive reports whether a process with the given pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
