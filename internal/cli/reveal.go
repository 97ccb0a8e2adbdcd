package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cohort/internal/config"
	"github.com/roach88/cohort/internal/drip"
	"github.com/roach88/cohort/internal/script"
)

// viewOptions are the flags shared by commands that evaluate a script for
// one viewer at one instant.
type viewOptions struct {
	Enrolled  string
	Now       string
	FirstName string
}

func (v *viewOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&v.Enrolled, "enrolled", "", "enrollment instant (RFC 3339 or YYYY-MM-DD); defaults to now")
	cmd.Flags().StringVar(&v.Now, "now", "", "evaluation instant (RFC 3339 or YYYY-MM-DD); defaults to the current time")
	cmd.Flags().StringVar(&v.FirstName, "first-name", "", "viewer first name used in {firstName}")
}

// view is a resolved viewer at an instant.
type view struct {
	cfg      config.Config
	script   *script.Script
	schedule drip.Schedule
	enrolled *time.Time
	now      time.Time
}

func (v view) elapsedDays() int {
	start := v.now
	if v.enrolled != nil {
		start = *v.enrolled
	}
	return drip.ElapsedDays(start, v.now, v.schedule.Location)
}

// resolveView loads config and the script, then parses the time flags.
func resolveView(opts *RootOptions, vo *viewOptions, args []string, f *OutputFormatter) (view, error) {
	cfg, err := loadConfig(opts, f)
	if err != nil {
		return view{}, err
	}
	path, err := scriptPath(args, cfg, f)
	if err != nil {
		return view{}, err
	}
	s, err := script.Load(path)
	if err != nil {
		var loadErr *script.LoadError
		if errors.As(err, &loadErr) {
			return view{}, f.Fail(ExitCommandError, loadErr.Code, loadErr.Error(), err)
		}
		return view{}, f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), err)
	}

	sched, err := cfg.Schedule()
	if err != nil {
		return view{}, f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), err)
	}
	sched.Vars = script.Vars{FirstName: vo.FirstName}

	now, err := parseInstant(vo.Now, sched.Location, time.Now())
	if err != nil {
		return view{}, f.Fail(ExitCommandError, ErrCodeFlag, err.Error(), err)
	}
	v := view{cfg: cfg, script: s, schedule: sched, now: now}
	if vo.Enrolled != "" {
		enrolled, err := parseInstant(vo.Enrolled, sched.Location, now)
		if err != nil {
			return view{}, f.Fail(ExitCommandError, ErrCodeFlag, err.Error(), err)
		}
		v.enrolled = &enrolled
	}
	return v, nil
}

// RevealResult is the JSON payload of the reveal command.
type RevealResult struct {
	ElapsedDays int             `json:"elapsedDays"`
	Messages    []drip.Revealed `json:"messages"`
	NextReveal  *time.Time      `json:"nextReveal,omitempty"`
}

// NewRevealCommand creates the reveal command.
func NewRevealCommand(rootOpts *RootOptions) *cobra.Command {
	vo := &viewOptions{}

	cmd := &cobra.Command{
		Use:   "reveal [script]",
		Short: "Show the scripted feed a user sees at an instant",
		Long: `Evaluate the drip schedule for one enrollment and print every scripted
message visible at --now, oldest first, followed by the next reveal.

Example:
  cohort reveal cohort.yaml --enrolled 2026-03-02 --now 2026-03-04T12:00:00Z
  cohort reveal cohort.yaml --first-name Ada --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReveal(rootOpts, vo, args, cmd)
		},
	}
	vo.register(cmd)

	return cmd
}

func runReveal(opts *RootOptions, vo *viewOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	v, err := resolveView(opts, vo, args, formatter)
	if err != nil {
		return err
	}

	result := RevealResult{
		ElapsedDays: v.elapsedDays(),
		Messages:    drip.Reveal(v.script, v.enrolled, v.now, v.schedule),
	}
	if next, ok := drip.NextReveal(v.script, v.enrolled, v.now, v.schedule); ok {
		result.NextReveal = &next
	}
	formatter.VerboseLog("Day %d of %d, %d message(s) visible", result.ElapsedDays, v.schedule.DayCap, len(result.Messages))

	if formatter.JSON() {
		return formatter.Success(result)
	}
	if err := drip.WriteText(formatter.Writer, result.Messages); err != nil {
		return WrapExitError(ExitCommandError, "write feed", err)
	}
	if result.NextReveal != nil {
		fmt.Fprintf(formatter.Writer, "next reveal: %s\n", result.NextReveal.Format(time.RFC3339))
	} else {
		fmt.Fprintln(formatter.Writer, "next reveal: none")
	}
	return nil
}
