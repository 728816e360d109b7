package action

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"syscall"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
)

// runCommand runs name with args to completion, streaming combined
// output line-by-line to the progress sink the way the teacher's
// runWithProgressStep streams subprocess output, and launches the
// child in its own process group so a cancellation can group-kill it
// (spec.md §5: "long subprocesses are launched in a new process group
// so group-kill on cancel is reliable").
func runCommand(ac Context, kind, name string, args ...string) error {
	cmd := exec.CommandContext(ac.Ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// On cancellation, kill the whole group rather than only the leader.
	cmd.Cancel = func() error { return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL) }

	var stderrTail bytes.Buffer
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errdefs.NewCommandError(name, -1, err.Error(), err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errdefs.NewCommandError(name, -1, err.Error(), err)
	}

	if err := cmd.Start(); err != nil {
		return errdefs.NewCommandError(name, -1, err.Error(), err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			ac.emit(ProgressMsg{Kind: kind, Synopsis: name, Detail: scanner.Text()})
		}
	}()
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			stderrTail.Reset()
			stderrTail.WriteString(line)
			ac.emit(ProgressMsg{Kind: kind, Synopsis: name, Detail: line})
		}
	}()
	<-done

	if err := cmd.Wait(); err != nil {
		if ac.Ctx.Err() == context.Canceled {
			killProcessGroup(cmd)
			return errdefs.ErrCancelled
		}
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return errdefs.NewCommandError(name, exitCode, stderrTail.String(), err)
	}
	return nil
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}
