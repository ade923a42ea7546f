package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"pressroom/internal/app"
	"pressroom/internal/domain"
	"pressroom/internal/identity"
)

func rosterCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "roster", Short: "Manage editors and outlet members (super editors only)"}

	var filter, outlet string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List roster entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := caller(ctx, a, identity.RoleSuperEditor); err != nil {
					return err
				}
				users, err := a.Roster.List(ctx, identity.ListFilter(filter), outlet)
				if err != nil {
					return err
				}
				return printJSONOrTable(users, func() { printUsers(users) })
			})
		},
	}
	listCmd.Flags().StringVar(&filter, "filter", "all", "all, editors or members")
	listCmd.Flags().StringVar(&outlet, "outlet", "", "only members of this outlet")

	var username string
	addEditorCmd := rosterChange("add-editor <caller-id>", "Grant editor rights",
		func(ctx context.Context, a *app.App, actor domain.Principal, callerID string) (domain.User, error) {
			return a.Roster.AddEditor(ctx, callerID, username, actor.CallerID)
		})
	addEditorCmd.Flags().StringVar(&username, "username", "", "display name")

	var memberName, memberOutlet string
	addMemberCmd := rosterChange("add-member <caller-id>", "Add a member to an outlet",
		func(ctx context.Context, a *app.App, actor domain.Principal, callerID string) (domain.User, error) {
			return a.Roster.AddOutletMember(ctx, callerID, memberName, memberOutlet, actor.CallerID)
		})
	addMemberCmd.Flags().StringVar(&memberName, "username", "", "display name")
	addMemberCmd.Flags().StringVar(&memberOutlet, "outlet", "", "outlet the member writes for")

	cmd.AddCommand(
		listCmd,
		addEditorCmd,
		rosterChange("remove-editor <caller-id>", "Revoke editor and super editor rights",
			func(ctx context.Context, a *app.App, actor domain.Principal, callerID string) (domain.User, error) {
				return a.Roster.RemoveEditor(ctx, callerID, actor.CallerID)
			}),
		rosterChange("toggle-super <caller-id>", "Grant or revoke super editor rights of an editor",
			func(ctx context.Context, a *app.App, actor domain.Principal, callerID string) (domain.User, error) {
				return a.Roster.ToggleSuperEditor(ctx, callerID, actor.CallerID)
			}),
		addMemberCmd,
		rosterChange("remove-member <caller-id>", "Detach a member from their outlet",
			func(ctx context.Context, a *app.App, actor domain.Principal, callerID string) (domain.User, error) {
				return a.Roster.RemoveOutletMember(ctx, callerID, actor.CallerID)
			}),
	)
	return cmd
}

func rosterChange(use, short string, fn func(ctx context.Context, a *app.App, actor domain.Principal, callerID string) (domain.User, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor, err := caller(ctx, a, identity.RoleSuperEditor)
				if err != nil {
					return err
				}
				u, err := fn(ctx, a, actor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u, func() {
					printUsers([]domain.User{u})
					fmt.Println("roster updated")
				})
			})
		},
	}
}

func printUsers(users []domain.User) {
	tw := newTable()
	tw.AppendHeader(table.Row{"Caller", "Username", "Outlet", "Editor", "Super"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.CallerID, u.Username, u.Outlet, yesNo(u.IsEditor), yesNo(u.IsSuperEditor)})
	}
	tw.Render()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return ""
}
