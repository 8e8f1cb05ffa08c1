package port

import "context"

type Command struct {
	Name string
	Args []string
	Dir  string
}

type CommandResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// CommandRunner executes one external program to completion. A non-zero exit
// is returned as an error alongside the populated result.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (CommandResult, error)
}
