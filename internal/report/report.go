package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"pressroom/internal/domain"
)

// Source is the read-only slice of the engine a report is built from.
type Source interface {
	ListAllTasks(ctx context.Context) ([]domain.Task, error)
	ListSubmissionsForTask(ctx context.Context, taskID int64) ([]domain.Submission, error)
}

type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

func ParseFormat(v string) (Format, error) {
	switch f := Format(v); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatCSV, FormatMarkdown, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q (table, csv, markdown, json)", v)
}

// Report is every task with the submissions made for it.
type Report struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Tasks       []TaskEntry `json:"tasks"`
}

type TaskEntry struct {
	domain.Task
	Submissions []domain.Submission `json:"submissions"`
}

// Build collects the report. When taskID is non-zero only that task is kept.
func Build(ctx context.Context, src Source, taskID int64, now time.Time) (Report, error) {
	tasks, err := src.ListAllTasks(ctx)
	if err != nil {
		return Report{}, err
	}
	rep := Report{GeneratedAt: now.UTC(), Tasks: []TaskEntry{}}
	for _, t := range tasks {
		if taskID != 0 && t.ID != taskID {
			continue
		}
		subs, err := src.ListSubmissionsForTask(ctx, t.ID)
		if err != nil {
			return Report{}, err
		}
		if subs == nil {
			subs = []domain.Submission{}
		}
		rep.Tasks = append(rep.Tasks, TaskEntry{Task: t, Submissions: subs})
	}
	return rep, nil
}

const timeLayout = "02.01.2006 15:04"

// Write renders the report as two sections, tasks then submissions.
func Write(w io.Writer, rep Report, format Format) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	tasks := table.NewWriter()
	tasks.SetOutputMirror(w)
	tasks.SetTitle("Tasks")
	tasks.AppendHeader(table.Row{"Task", "Press release", "Deadline", "Status", "Created"})
	subs := table.NewWriter()
	subs.SetOutputMirror(w)
	subs.SetTitle("Submissions")
	subs.AppendHeader(table.Row{"Task", "Submission", "Outlet", "Status", "Submitted", "Content", "Revision comment", "Published link"})
	for _, t := range rep.Tasks {
		tasks.AppendRow(table.Row{t.ID, t.PressRelease, t.Deadline.Format(timeLayout), t.Status, t.CreatedAt.Format(timeLayout)})
		for _, s := range t.Submissions {
			subs.AppendRow(table.Row{t.ID, s.ID, s.Outlet, s.Status, s.SubmittedAt.Format(timeLayout), s.Content, s.RevisionComment, s.PublishedLink})
		}
	}
	render := func(tw table.Writer) {
		switch format {
		case FormatCSV:
			tw.RenderCSV()
		case FormatMarkdown:
			tw.RenderMarkdown()
		default:
			tw.Render()
		}
	}
	render(tasks)
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	render(subs)
	return nil
}
