package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/fiapx/fiapx-scene-service/internal/domain/port"
)

// sessionRunner drives one pipeline run from the command line, printing every
// event and recording the outcome in the registry.
type sessionRunner struct {
	out      io.Writer
	pipeline port.Pipeline
	repo     port.JobRepository
	zipper   port.Zipper
}

var errInterrupted = errors.New("pipeline stopped before a terminal event")

func (r *sessionRunner) run(ctx context.Context, req entity.PipelineRequest) (*entity.Job, error) {
	var size int64
	if info, err := os.Stat(req.VideoPath); err == nil {
		size = info.Size()
	}

	job := entity.NewJob(localUser(), req.VideoPath, size, 1)
	job.MarkProcessing()
	if err := r.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	var terminal *entity.PipelineEvent
	for ev := range r.pipeline.Run(ctx, req) {
		printEvent(r.out, ev)
		job.Apply(ev)
		if ev.Terminal() {
			terminal = &ev
		}
	}

	// The registry must still be updated when ctx was interrupted.
	saveCtx := context.WithoutCancel(ctx)

	switch {
	case terminal == nil:
		job.MarkFailed(entity.ErrorKindFatal, errInterrupted.Error())
		return job, errors.Join(errInterrupted, r.repo.Update(saveCtx, job))
	case terminal.Status == entity.EventFailure:
		err := fmt.Errorf("%s: %s", terminal.ErrorKind, terminal.Message)
		return job, errors.Join(err, r.repo.Update(saveCtx, job))
	}

	var exportPath string
	if r.zipper != nil && job.Workspace != "" {
		exportPath = job.Workspace + ".zip"
		if err := r.zipper.ZipDir(ctx, job.Workspace, exportPath); err != nil {
			job.MarkFailed(entity.ErrorKindFatal, fmt.Sprintf("export: %v", err))
			return job, errors.Join(fmt.Errorf("export workspace: %w", err), r.repo.Update(saveCtx, job))
		}
		fmt.Fprintf(r.out, "exported %s\n", exportPath)
	}

	job.MarkCompleted(exportPath)
	if err := r.repo.Update(saveCtx, job); err != nil {
		return job, fmt.Errorf("record session: %w", err)
	}
	return job, nil
}

func printEvent(w io.Writer, ev entity.PipelineEvent) {
	progress := "    "
	if ev.Progress != nil {
		progress = fmt.Sprintf("%3.0f%%", *ev.Progress*100)
	}
	marker := ""
	switch {
	case ev.Fallback:
		marker = " (fallback)"
	case ev.Status == entity.EventFailure:
		marker = fmt.Sprintf(" [%s]", ev.ErrorKind)
	}
	fmt.Fprintf(w, "%s %-14s %s%s\n", progress, ev.Stage, ev.Message, marker)
}

func localUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
