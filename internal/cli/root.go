// Package cli implements linfoctl, the operator tool for role assignment and
// store maintenance.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/remote"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

type RoleSetter interface {
	SetRole(ctx context.Context, email, role string) (*remote.User, error)
}

type Syncer interface {
	Resync(ctx context.Context, teamID string) (*dto.SyncResponse, error)
	ResyncAll(ctx context.Context) (*dto.SyncResponse, error)
	SweepOrphanBlobs(ctx context.Context, dryRun bool) ([]string, error)
}

// Deps are the services a command needs. Close releases connections.
type Deps struct {
	Roles RoleSetter
	Sync  Syncer
	Close func()
}

// Opener connects to the stores lazily so --help needs no configuration.
type Opener func(ctx context.Context) (*Deps, error)

// NewRootCommand creates the root command for linfoctl.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "linfoctl",
		Short: "Linfoscopio operator tool",
		Long:  "Assign user roles and maintain the local cache and capture storage.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSetRoleCommand(opts, open))
	cmd.AddCommand(NewResyncCommand(opts, open))
	cmd.AddCommand(NewSweepCommand(opts, open))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withDeps opens the stores for one command run.
func withDeps(cmd *cobra.Command, open Opener, fn func(ctx context.Context, deps *Deps) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	deps, err := open(ctx)
	if err != nil {
		return err
	}
	if deps.Close != nil {
		defer deps.Close()
	}
	return fn(ctx, deps)
}

// output writes v as JSON or the text line.
func output(w io.Writer, opts *RootOptions, v any, text string) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
