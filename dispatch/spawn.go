package dispatch

import (
	"os"
	"os/exec"
)

// ExecSpawner starts detached child processes.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(name string, args ...string) (*os.Process, error) {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = detachAttrs()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go cmd.Wait()
	return cmd.Process, nil
}
