package dispatch

import (
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"

	"github.com/umputun/workdb/app/persistence"
)

const defaultKillWait = 5 * time.Second

// ShellRunner executes item payload as a shell command
type ShellRunner struct {
	Stdout          io.Writer
	EnableLogPrefix bool
	MaxLogLines     int           // lines of output tail attached to the error
	KillWait        time.Duration // max wait for output pipes after the command is killed
}

// Run executes payload with sh -c. On ctx cancellation the whole process group
// of the command is killed, including children spawned by the shell.
func (r *ShellRunner) Run(ctx context.Context, item persistence.WorkItem) error {
	command := string(item.Payload)
	if command == "" {
		return errors.Errorf("empty command for %s", item.ID)
	}

	stdout := r.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	out := newItemOutput(stdout, item.ID, r.EnableLogPrefix, r.MaxLogLines)

	cmd := exec.CommandContext(ctx, "sh", "-c", command) // nolint gosec
	cmd.Stdout = out
	cmd.Stderr = out
	killGroupOnCancel(cmd)
	cmd.WaitDelay = r.KillWait
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultKillWait
	}

	err := cmd.Run()
	if ferr := out.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		if tail := out.Tail(); tail != "" {
			return errors.Wrapf(err, "failed to execute %q, output:\n%s", command, tail)
		}
		return errors.Wrapf(err, "failed to execute %q", command)
	}
	return nil
}
