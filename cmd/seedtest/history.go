package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/vjranagit/influxseed/pkg/journal"
)

func newTable(out io.Writer, header ...any) table.Writer {
	w := table.NewWriter()
	w.SetOutputMirror(out)

	style := table.StyleLight
	style.Options.SeparateColumns = false
	style.Options.DrawBorder = false
	w.SetStyle(style)

	w.AppendHeader(table.Row(header))
	return w
}

func printRuns(out io.Writer, j *journal.Journal, limit int) error {
	runs, err := j.Runs(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	w := newTable(out, "run id", "started", "bucket", "status", "batches", "samples", "bytes", "error")
	for _, run := range runs {
		w.AppendRow(table.Row{
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			run.Bucket,
			string(run.Status),
			run.Batches,
			run.Samples,
			run.Bytes,
			run.Error,
		})
	}
	w.Render()
	return nil
}

func printBatches(out io.Writer, j *journal.Journal, runID string) error {
	run, err := j.Run(runID)
	if err != nil {
		return err
	}
	batches, err := j.Batches(runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s: %s into %q, %s to %s every %s\n",
		run.ID, run.Status, run.Bucket,
		run.RangeStart.UTC().Format(time.RFC3339),
		run.RangeEnd.UTC().Format(time.RFC3339),
		run.Step,
	)

	w := newTable(out, "batch", "written", "samples", "first", "last", "bytes")
	for _, b := range batches {
		if len(b.Samples) == 0 {
			continue
		}
		first, last := b.Samples[0], b.Samples[len(b.Samples)-1]
		w.AppendRow(table.Row{
			b.Index,
			b.WrittenAt.Format(time.RFC3339),
			len(b.Samples),
			first.Time().Format(time.RFC3339),
			last.Time().Format(time.RFC3339),
			b.Bytes,
		})
	}
	w.Render()
	return nil
}
