package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"pressroom/internal/app"
	"pressroom/internal/domain"
	"pressroom/internal/engine"
	"pressroom/internal/identity"
)

func submissionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "submission", Aliases: []string{"sub"}, Short: "Submit and moderate pieces"}
	cmd.AddCommand(submissionCreateCmd())
	cmd.AddCommand(submissionListCmd())
	cmd.AddCommand(submissionShowCmd())
	cmd.AddCommand(submissionApproveCmd())
	cmd.AddCommand(submissionReviseCmd())
	cmd.AddCommand(submissionResubmitCmd())
	cmd.AddCommand(submissionPhotoCmd())
	cmd.AddCommand(submissionLinkCmd())
	return cmd
}

func submissionCreateCmd() *cobra.Command {
	var taskID int64
	var content string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a piece for a task your outlet claimed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := caller(ctx, a, identity.RoleOutletMember)
				if err != nil {
					return err
				}
				if err := a.Engine.CheckSubmittable(ctx, taskID, p.Outlet); err != nil {
					var nc engine.NotClaimedError
					if errors.As(err, &nc) {
						return fmt.Errorf("%w; run pressroom task claim %d first", err, taskID)
					}
					return err
				}
				s, err := a.Engine.CreateSubmission(ctx, taskID, p, content)
				if err != nil {
					return err
				}
				return printSubmission(s)
			})
		},
	}
	cmd.Flags().Int64Var(&taskID, "task", 0, "task id")
	cmd.Flags().StringVar(&content, "content", "", "text of the piece")
	return cmd
}

func submissionListCmd() *cobra.Command {
	var view string
	var active bool
	var taskID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions (queue, mine, archive, or one task's with --task)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := caller(ctx, a)
				if err != nil {
					return err
				}
				var items []domain.Submission
				switch {
				case taskID != 0:
					if err := identity.Require(p, identity.RoleEditor); err != nil {
						return err
					}
					items, err = a.Engine.ListSubmissionsForTask(ctx, taskID)
				case view == "queue":
					if err := identity.Require(p, identity.RoleEditor); err != nil {
						return err
					}
					items, err = a.Engine.ListReviewQueue(ctx)
				case view == "archive":
					author := p.UserID
					if p.IsEditor {
						author = 0
					}
					items, err = a.Engine.ListArchive(ctx, author)
				case view == "mine":
					items, err = a.Engine.ListAuthorSubmissions(ctx, p.UserID, active)
				default:
					return fmt.Errorf("--view must be queue, mine or archive")
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func() { printSubmissions(items) })
			})
		},
	}
	cmd.Flags().StringVar(&view, "view", "mine", "queue, mine or archive")
	cmd.Flags().BoolVar(&active, "active", false, "with --view mine, hide completed submissions older than the recent window")
	cmd.Flags().Int64Var(&taskID, "task", 0, "list every submission for this task (editors)")
	return cmd
}

func submissionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <submission-id>",
		Short: "Show a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s, err := a.Engine.GetSubmission(ctx, id)
				if err != nil {
					return err
				}
				return printSubmission(s)
			})
		},
	}
}

func submissionApproveCmd() *cobra.Command {
	return editorAction("approve <submission-id>", "Approve the text, or the photo once attached",
		func(ctx context.Context, a *app.App, p domain.Principal, id int64) (domain.Submission, error) {
			return a.Engine.Approve(ctx, id, p.CallerID)
		})
}

func submissionReviseCmd() *cobra.Command {
	var comment string
	var photo bool
	cmd := editorAction("revise <submission-id>", "Send a submission back to its author",
		func(ctx context.Context, a *app.App, p domain.Principal, id int64) (domain.Submission, error) {
			return a.Engine.RequestRevision(ctx, id, comment, photo, p.CallerID)
		})
	cmd.Flags().StringVar(&comment, "comment", "", "what the author should fix")
	cmd.Flags().BoolVar(&photo, "photo", false, "ask for a new photo instead of new text")
	return cmd
}

func submissionResubmitCmd() *cobra.Command {
	var content, photo string
	cmd := authorAction("resubmit <submission-id>", "Resubmit after a revision request",
		func(ctx context.Context, a *app.App, p domain.Principal, id int64) (domain.Submission, error) {
			return a.Engine.ResubmitContent(ctx, id, engine.ResubmitOptions{Content: content, Photo: photo}, p.CallerID)
		})
	cmd.Flags().StringVar(&content, "content", "", "revised text")
	cmd.Flags().StringVar(&photo, "photo", "", "replacement photo")
	return cmd
}

func submissionPhotoCmd() *cobra.Command {
	var photo string
	cmd := authorAction("photo <submission-id>", "Attach a photo once the text is approved",
		func(ctx context.Context, a *app.App, p domain.Principal, id int64) (domain.Submission, error) {
			return a.Engine.AttachPhoto(ctx, id, photo, p.CallerID)
		})
	cmd.Flags().StringVar(&photo, "photo", "", "photo reference")
	return cmd
}

func submissionLinkCmd() *cobra.Command {
	var link string
	cmd := authorAction("link <submission-id>", "Record the published link",
		func(ctx context.Context, a *app.App, p domain.Principal, id int64) (domain.Submission, error) {
			return a.Engine.AttachPublishedLink(ctx, id, link, p.CallerID)
		})
	cmd.Flags().StringVar(&link, "link", "", "URL of the published piece")
	return cmd
}

type submissionAction func(ctx context.Context, a *app.App, p domain.Principal, id int64) (domain.Submission, error)

func editorAction(use, short string, fn submissionAction) *cobra.Command {
	return submissionActionCmd(use, short, func(ctx context.Context, a *app.App, id int64) (domain.Submission, error) {
		p, err := caller(ctx, a, identity.RoleEditor)
		if err != nil {
			return domain.Submission{}, err
		}
		return fn(ctx, a, p, id)
	})
}

func authorAction(use, short string, fn submissionAction) *cobra.Command {
	return submissionActionCmd(use, short, func(ctx context.Context, a *app.App, id int64) (domain.Submission, error) {
		p, err := caller(ctx, a)
		if err != nil {
			return domain.Submission{}, err
		}
		s, err := a.Engine.GetSubmission(ctx, id)
		if err != nil {
			return domain.Submission{}, err
		}
		if s.AuthorID != p.UserID {
			return domain.Submission{}, fmt.Errorf("submission %d belongs to another author", id)
		}
		return fn(ctx, a, p, id)
	})
}

func submissionActionCmd(use, short string, run func(ctx context.Context, a *app.App, id int64) (domain.Submission, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s, err := run(ctx, a, id)
				if err != nil {
					return err
				}
				return printSubmission(s)
			})
		},
	}
}

func printSubmission(s domain.Submission) error {
	return printJSONOrTable(s, func() {
		printSubmissions([]domain.Submission{s})
		if s.RevisionComment != "" {
			fmt.Printf("revision (%s): %s\n", s.RevisionTarget, s.RevisionComment)
		}
		if next := engine.AllowedActions(s.Status); len(next) > 0 {
			fmt.Printf("next: %v\n", next)
		}
	})
}

func printSubmissions(items []domain.Submission) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Task", "Outlet", "Status", "Submitted", "Link"})
	for _, s := range items {
		tw.AppendRow(table.Row{s.ID, s.TaskID, s.Outlet, s.Status, humanize.Time(s.SubmittedAt), s.PublishedLink})
	}
	tw.Render()
}
