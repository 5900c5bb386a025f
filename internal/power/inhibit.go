// Package power keeps the host from idling or sleeping while a recording runs.
package power

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"
)

// Inhibitor is a stay-awake request that the platform may drop on its own.
type Inhibitor interface {
	// Acquire takes the lock if it is not already held.
	Acquire() error
	// Release drops the lock. Safe to call when not held.
	Release()
	// Held reports whether the lock is currently in effect.
	Held() bool
}

// Command holds the lock for as long as a helper process runs.
type Command struct {
	name string
	args []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

// NewCommand returns an inhibitor that runs name with args while held.
func NewCommand(name string, args ...string) *Command {
	return &Command{name: name, args: args}
}

// ForHost picks the platform's inhibitor: systemd-inhibit on Linux,
// caffeinate on macOS. Other platforms get a no-op.
func ForHost() Inhibitor {
	switch runtime.GOOS {
	case "linux":
		if _, err := exec.LookPath("systemd-inhibit"); err == nil {
			return NewCommand("systemd-inhibit",
				"--what=idle:sleep",
				"--who=whisp",
				"--why=Recording a voice note",
				"--mode=block",
				"sleep", "infinity")
		}
	case "darwin":
		return NewCommand("caffeinate", "-i")
	}
	return Nop{}
}

func (c *Command) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.heldLocked() {
		return nil
	}

	cmd := exec.Command(c.name, c.args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.name, err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()
	c.cmd, c.exited = cmd, exited
	return nil
}

func (c *Command) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil {
		return
	}
	if c.heldLocked() {
		_ = c.cmd.Process.Kill()
		<-c.exited
	}
	c.cmd, c.exited = nil, nil
}

func (c *Command) Held() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heldLocked()
}

func (c *Command) heldLocked() bool {
	if c.cmd == nil {
		return false
	}
	select {
	case <-c.exited:
		return false
	default:
		return true
	}
}

// Nop never holds anything.
type Nop struct{}

func (Nop) Acquire() error { return nil }
func (Nop) Release()       {}
func (Nop) Held() bool     { return false }
