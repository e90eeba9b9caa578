//go:build windows

package render

import "os/exec"

// Windows has no process groups in the POSIX sense; the default Cancel
// (Process.Kill) is used.
func configureProcessGroup(cmd *exec.Cmd) {}
