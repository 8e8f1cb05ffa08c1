// Package process runs external programs as scoped children: output streams
// are always drained, and cancelling the context kills the whole process group.
package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/fiapx/fiapx-scene-service/internal/domain/port"
	"go.uber.org/zap"
)

const (
	maxStdoutBytes = 4 << 20
	maxStderrBytes = 16 << 10

	defaultWaitDelay = 5 * time.Second
)

type Runner struct {
	logger    *zap.Logger
	waitDelay time.Duration
}

func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger, waitDelay: defaultWaitDelay}
}

// Run starts cmd and blocks until it exits and both of its output streams are
// closed. If ctx ends first the child's process group is killed and the
// context error is returned.
func (r *Runner) Run(ctx context.Context, c port.Command) (port.CommandResult, error) {
	res := port.CommandResult{ExitCode: -1}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("%s: %w", c.Name, err)
	}

	log := r.logger.With(zap.String("cmd", c.Name))
	if len(c.Args) > 0 {
		log = log.With(zap.String("subcommand", c.Args[0]))
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		log.Warn("context done, killing process group")
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = r.waitDelay

	stdout := &headBuffer{limit: maxStdoutBytes}
	stderr := &lineWriter{tail: tailBuffer{limit: maxStderrBytes}, log: log}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.Debug("starting process", zap.String("args", strings.Join(c.Args, " ")))
	start := time.Now()
	err := cmd.Run()
	stderr.flush()

	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.tail.Bytes()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%s: %w", c.Name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Debug("process failed", zap.Int("exit_code", res.ExitCode), zap.Duration("elapsed", time.Since(start)))
			return res, fmt.Errorf("%s exited with status %d: %w", c.Name, res.ExitCode, err)
		}
		return res, fmt.Errorf("run %s: %w", c.Name, err)
	}

	log.Debug("process finished", zap.Duration("elapsed", time.Since(start)))
	return res, nil
}
