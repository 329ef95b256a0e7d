//go:build !unix

package process

import (
	"os"
	"os/exec"
)

func setProcessGroup(c *exec.Cmd) {}

// terminateGroup kills the process: there is no graceful termination signal.
func terminateGroup(p *os.Process) error {
	return p.Kill()
}

func killGroup(p *os.Process) error {
	return p.Kill()
}
