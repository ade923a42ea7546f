package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"pressroom/internal/app"
	"pressroom/internal/identity"
	"pressroom/internal/repo"
	"pressroom/internal/report"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Export task and submission reports"}
	var taskID int64
	var format, out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export tasks with their submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := caller(ctx, a, identity.RoleEditor); err != nil {
					return err
				}
				rep, err := report.Build(ctx, a.Engine, taskID, time.Now())
				if err != nil {
					return err
				}
				var w io.Writer = os.Stdout
				if out != "" {
					file, err := os.Create(out)
					if err != nil {
						return err
					}
					defer file.Close()
					w = file
				}
				if err := report.Write(w, rep, f); err != nil {
					return err
				}
				if out != "" {
					fmt.Printf("wrote %d task(s) to %s\n", len(rep.Tasks), out)
				}
				return nil
			})
		},
	}
	exportCmd.Flags().Int64Var(&taskID, "task", 0, "only this task")
	exportCmd.Flags().StringVar(&format, "format", "table", "table, csv, markdown or json")
	exportCmd.Flags().StringVarP(&out, "out", "o", "", "write to a file instead of stdout")
	cmd.AddCommand(exportCmd)
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	var n int
	var typ, entityKind, entityID string
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := caller(ctx, a, identity.RoleEditor); err != nil {
					return err
				}
				items, err := a.Engine.Repo.LatestEvents(ctx, repo.EventFilters{
					Type:       typ,
					EntityKind: entityKind,
					EntityID:   entityID,
					Limit:      n,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func() {
					tw := newTable()
					tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor", "Payload"})
					for _, e := range items {
						tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + ":" + e.EntityID, e.ActorID, e.Payload})
					}
					tw.Render()
				})
			})
		},
	}
	tailCmd.Flags().IntVarP(&n, "n", "n", 20, "number of events")
	tailCmd.Flags().StringVar(&typ, "type", "", "event type")
	tailCmd.Flags().StringVar(&entityKind, "entity-kind", "", "task, submission or user")
	tailCmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.AddCommand(tailCmd)
	return cmd
}
