package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/spf13/cobra"
)

// NewSetRoleCommand assigns doctor or secretaria to an existing user.
func NewSetRoleCommand(rootOpts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <email> <doctor|secretaria>",
		Short: "Assign a role to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, open, func(ctx context.Context, deps *Deps) error {
				user, err := deps.Roles.SetRole(ctx, args[0], strings.ToLower(args[1]))
				if err != nil {
					return fmt.Errorf("set role for %s: %w", args[0], err)
				}
				return output(cmd.OutOrStdout(), rootOpts, user,
					fmt.Sprintf("%s is now %s (team %s)", user.Email, user.Role, user.TeamID))
			})
		},
	}
}

// NewResyncCommand rebuilds the local cache from the remote store.
func NewResyncCommand(rootOpts *RootOptions, open Opener) *cobra.Command {
	var teamID string

	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Rebuild the local cache from the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, open, func(ctx context.Context, deps *Deps) error {
				var (
					res *dto.SyncResponse
					err error
				)
				if teamID != "" {
					res, err = deps.Sync.Resync(ctx, teamID)
				} else {
					res, err = deps.Sync.ResyncAll(ctx)
				}
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), rootOpts, res,
					fmt.Sprintf("resynced %d team(s): %d patient(s), %d capture(s)", res.Teams, res.Patients, res.Captures))
			})
		},
	}

	cmd.Flags().StringVar(&teamID, "team", "", "only rebuild this team")
	return cmd
}

// NewSweepCommand removes capture blobs no document refers to.
func NewSweepCommand(rootOpts *RootOptions, open Opener) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete orphaned capture blobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, open, func(ctx context.Context, deps *Deps) error {
				orphans, err := deps.Sync.SweepOrphanBlobs(ctx, dryRun)
				if err != nil {
					return err
				}
				verb := "deleted"
				if dryRun {
					verb = "would delete"
				}
				text := fmt.Sprintf("%s %d orphaned blob(s)", verb, len(orphans))
				for _, p := range orphans {
					text += "\n  " + p
				}
				return output(cmd.OutOrStdout(), rootOpts, map[string]any{
					"dry_run": dryRun,
					"orphans": orphans,
				}, text)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list orphans without deleting")
	return cmd
}
