//go:build !windows

package builtin

import "os/exec"

// newPersistentShellCmd builds the long-lived shell process a bashSession
// pipes commands into. Unlike a one-shot `sh -c <command>` invocation, this
// process is started once and kept alive across many Execute calls.
func newPersistentShellCmd() *exec.Cmd {
	return exec.Command("/bin/bash")
}
