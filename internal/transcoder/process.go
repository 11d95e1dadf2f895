package transcoder

import (
	"io"
	"os/exec"
	"syscall"
)

// Process is one live transcoder owned by exactly one process key.
type Process struct {
	key Key
	cmd *exec.Cmd

	stdout io.ReadCloser

	// done is closed once Wait has reaped the process
	done    chan struct{}
	waitErr error
}

// Key identifies the process slot.
func (p *Process) Key() Key {
	return p.key
}

// PID of the underlying process.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Output is the media byte stream of the process. The pipe is closed when
// the process exits, which ends every attached reader.
func (p *Process) Output() io.Reader {
	return p.stdout
}

// Alive reports whether the process has not been reaped yet.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// terminate requests a cooperative shutdown of the whole process group.
func (p *Process) terminate() error {
	if pgid, err := syscall.Getpgid(p.cmd.Process.Pid); err == nil {
		return syscall.Kill(-pgid, syscall.SIGTERM)
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

// kill forcibly ends the process group.
func (p *Process) kill() error {
	if pgid, err := syscall.Getpgid(p.cmd.Process.Pid); err == nil {
		return syscall.Kill(-pgid, syscall.SIGKILL)
	}
	return p.cmd.Process.Kill()
}
