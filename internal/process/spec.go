package process

import (
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
)

// Spec describes the backend process to launch: an interpreter running one script.
type Spec struct {
	Name        string   `json:"name" mapstructure:"name"`
	Interpreter string   `json:"interpreter" mapstructure:"interpreter"` // e.g. python3; empty runs Script directly
	Script      string   `json:"script" mapstructure:"script"`           // script path, relative paths resolve against WorkDir
	Args        []string `json:"args" mapstructure:"args"`               // extra arguments after the script
	WorkDir     string   `json:"work_dir" mapstructure:"work_dir"`
	Env         []string `json:"env" mapstructure:"env"` // KEY=VALUE; empty inherits the host environment
}

// Validate checks that s can produce a command.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Interpreter) == "" && strings.TrimSpace(s.Script) == "" {
		return errors.New("process spec requires interpreter or script")
	}
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("process spec requires name")
	}
	return nil
}

// ScriptPath returns the script path the command will receive.
func (s Spec) ScriptPath() string {
	if s.Script == "" || filepath.IsAbs(s.Script) || s.WorkDir == "" {
		return s.Script
	}
	return filepath.Join(s.WorkDir, s.Script)
}

// BuildCommand constructs the *exec.Cmd for s. No shell is involved:
// the interpreter receives the script path as its first argument.
func (s Spec) BuildCommand() *exec.Cmd {
	script := s.ScriptPath()
	name := strings.TrimSpace(s.Interpreter)
	var args []string
	if name == "" {
		name = script
	} else if script != "" {
		args = append(args, script)
	}
	args = append(args, s.Args...)
	// #nosec G204 -- interpreter and script come from local configuration
	cmd := exec.Command(name, args...)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if len(s.Env) > 0 {
		cmd.Env = append([]string(nil), s.Env...)
	}
	return cmd
}

// CommandLine renders the command for logs.
func (s Spec) CommandLine() string {
	cmd := s.BuildCommand()
	return strings.Join(cmd.Args, " ")
}
