//go:build windows

package builtin

import "os/exec"

// newPersistentShellCmd builds the long-lived shell process on Windows. cmd
// lacks bash's "(\ncommand\n); echo sentinel" grouping syntax, but accepts
// the same piped-stdin command framing one line at a time, which is all
// BashSession.run needs.
func newPersistentShellCmd() *exec.Cmd {
	return exec.Command("cmd")
}
