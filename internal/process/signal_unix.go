//go:build !windows

package process

import (
	"errors"
	"os"
	"syscall"
)

// signalGroup signals the whole process group started by configureSysProcAttr,
// falling back to the single process when the group is already gone.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	err := syscall.Kill(-p.Pid, sig)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ESRCH) {
		if err := p.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return nil
	}
	return err
}
