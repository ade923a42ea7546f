package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"pressroom/internal/app"
	"pressroom/internal/domain"
	"pressroom/internal/engine"
	"pressroom/internal/identity"
)

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage press-release tasks"}
	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskShowCmd())
	cmd.AddCommand(taskClaimCmd())
	cmd.AddCommand(taskCancelCmd())
	cmd.AddCommand(taskDeleteCmd())
	return cmd
}

// parseDeadline accepts an RFC3339 timestamp or a duration from now.
func parseDeadline(v string, now time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("--deadline required")
	}
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(d), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--deadline must be RFC3339 or a duration like 48h: %w", err)
	}
	return t, nil
}

func taskCreateCmd() *cobra.Command {
	var pressRelease, deadline, photo string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := caller(ctx, a, identity.RoleEditor)
				if err != nil {
					return err
				}
				due, err := parseDeadline(deadline, time.Now())
				if err != nil {
					return err
				}
				t, err := a.Engine.CreateTask(ctx, engine.CreateTaskOptions{
					PressRelease: pressRelease,
					Deadline:     due,
					Photo:        photo,
					CreatedBy:    p.CallerID,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t, func() { printTasks([]domain.Task{t}) })
			})
		},
	}
	cmd.Flags().StringVar(&pressRelease, "press-release", "", "press release link or text")
	cmd.Flags().StringVar(&deadline, "deadline", "", "RFC3339 timestamp or duration from now")
	cmd.Flags().StringVar(&photo, "photo", "", "photo reference")
	return cmd
}

func taskListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks open to the caller's outlet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var (
					tasks []domain.Task
					err   error
				)
				if all {
					if _, err := caller(ctx, a, identity.RoleEditor); err != nil {
						return err
					}
					tasks, err = a.Engine.ListAllTasks(ctx)
				} else {
					p, cerr := caller(ctx, a)
					if cerr != nil {
						return cerr
					}
					tasks, err = a.Engine.GetActiveTasks(ctx, p.Outlet)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(tasks, func() { printTasks(tasks) })
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every task (editors)")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with its assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := caller(ctx, a); err != nil {
					return err
				}
				t, err := a.Engine.GetTask(ctx, id)
				if err != nil {
					return err
				}
				assignments, err := a.Engine.ListAssignments(ctx, id)
				if err != nil {
					return err
				}
				out := map[string]any{"task": t, "assignments": assignments}
				return printJSONOrTable(out, func() {
					printTasks([]domain.Task{t})
					tw := newTable()
					tw.AppendHeader(table.Row{"Outlet", "Claimed", "Status"})
					for _, as := range assignments {
						tw.AppendRow(table.Row{as.Outlet, humanize.Time(as.AssignedAt), as.Status})
					}
					tw.Render()
				})
			})
		},
	}
}

func taskClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <task-id>",
		Short: "Claim a task for the caller's outlet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := caller(ctx, a, identity.RoleOutletMember)
				if err != nil {
					return err
				}
				as, err := a.Engine.ClaimTask(ctx, id, p.Outlet)
				if err != nil {
					return err
				}
				return printJSONOrTable(as, func() {
					fmt.Printf("task %d claimed by %s\n", as.TaskID, as.Outlet)
				})
			})
		},
	}
}

func taskCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := caller(ctx, a, identity.RoleEditor)
				if err != nil {
					return err
				}
				t, err := a.Engine.CancelTask(ctx, id, p.CallerID)
				if err != nil {
					return err
				}
				return printJSONOrTable(t, func() { printTasks([]domain.Task{t}) })
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task with its assignments and submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := caller(ctx, a, identity.RoleEditor)
				if err != nil {
					return err
				}
				if err := a.Engine.DeleteTaskCascade(ctx, id, p.CallerID); err != nil {
					return err
				}
				fmt.Printf("task %d deleted\n", id)
				return nil
			})
		},
	}
}

func printTasks(tasks []domain.Task) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Press release", "Deadline", "Status"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.PressRelease, humanize.Time(t.Deadline), t.Status})
	}
	tw.Render()
}
