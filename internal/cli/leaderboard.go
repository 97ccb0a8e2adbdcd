package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/cohort/internal/progress"
)

// LeaderboardOptions holds flags for the leaderboard command.
type LeaderboardOptions struct {
	viewOptions
	UserID      string
	UserPercent int
}

// NewLeaderboardCommand creates the leaderboard command.
func NewLeaderboardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LeaderboardOptions{}

	cmd := &cobra.Command{
		Use:   "leaderboard [script]",
		Short: "Rank the cohort personas together with the viewer",
		Long: `Compute every persona's simulated progress for the viewer's elapsed days
and rank it together with the viewer's own course progress.

Example:
  cohort leaderboard cohort.yaml --enrolled 2026-03-02 --user-percent 40`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboard(rootOpts, opts, args, cmd)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.UserID, "user-id", "you", "entity id of the viewer row")
	cmd.Flags().IntVar(&opts.UserPercent, "user-percent", 0, "viewer course progress, 0-100")

	return cmd
}

func runLeaderboard(opts *RootOptions, lo *LeaderboardOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	v, err := resolveView(opts, &lo.viewOptions, args, formatter)
	if err != nil {
		return err
	}

	name := lo.FirstName
	if name == "" {
		name = "You"
	}
	user := progress.Standing{EntityID: lo.UserID, DisplayName: name, Value: lo.UserPercent}
	rows := v.cfg.Simulator().Leaderboard(v.script.Personas, v.elapsedDays(), &user)

	if formatter.JSON() {
		return formatter.Success(rows)
	}
	writeLeaderboard(formatter, rows)
	return nil
}

func writeLeaderboard(f *OutputFormatter, rows []progress.Standing) {
	for _, r := range rows {
		marker := ""
		if r.IsUser {
			marker = "  <- you"
		}
		fmt.Fprintf(f.Writer, "%5s  %-16s %3d%%%s\n", humanize.Ordinal(r.Rank), r.DisplayName, r.Value, marker)
	}
}
