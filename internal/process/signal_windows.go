//go:build windows

package process

import (
	"errors"
	"os"
	"syscall"
)

// signalGroup terminates the process; Windows has no SIGTERM delivery for console children.
func signalGroup(p *os.Process, _ syscall.Signal) error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
