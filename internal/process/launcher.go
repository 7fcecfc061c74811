package process

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"syscall"
)

// Spec describes how to start one client.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	Env     map[string]string
}

// Handle tracks a started process until it exits.
type Handle struct {
	PID  int
	done chan struct{}
	err  error
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the wait error after Done is closed.
func (h *Handle) Err() error {
	<-h.done
	return h.err
}

// Track returns a handle for pid whose Done channel closes once wait
// returns.
func Track(pid int, wait func() error) *Handle {
	h := &Handle{PID: pid, done: make(chan struct{})}
	go func() {
		h.err = wait()
		close(h.done)
	}()
	return h
}

// Launcher starts processes. Children get their own process group so a
// daemon restart does not take the clients down with it.
type Launcher struct {
	Logger *slog.Logger
}

// Start launches spec and returns once the process is running.
func (l *Launcher) Start(ctx context.Context, spec Spec) (*Handle, error) {
	if spec.Command == "" {
		return nil, fmt.Errorf("command is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(os.Environ(), spec.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Command, err)
	}

	pid := cmd.Process.Pid
	return Track(pid, func() error {
		err := cmd.Wait()
		if l.Logger != nil {
			l.Logger.Debug("process exited", "pid", pid, "error", err)
		}
		return err
	}), nil
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := append([]string(nil), base...)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}
