package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cohort/internal/script"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                     `json:"valid"`
	Path        string                   `json:"path"`
	Fingerprint string                   `json:"fingerprint,omitempty"`
	Personas    int                      `json:"personas"`
	Days        int                      `json:"days"`
	Messages    int                      `json:"messages"`
	Errors      []script.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [script]",
		Short: "Check a cohort script without revealing it",
		Long: `Parse a YAML or CUE cohort script and report every validation error.

Exit code 1 means the script parsed but is invalid; exit code 2 means it
could not be read or parsed at all.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts, formatter)
	if err != nil {
		return err
	}
	path, err := scriptPath(args, cfg, formatter)
	if err != nil {
		return err
	}

	s, err := script.ParseFile(path)
	if err != nil {
		var loadErr *script.LoadError
		if errors.As(err, &loadErr) {
			return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Error(), err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), err)
	}
	formatter.VerboseLog("Parsed %s: %d persona(s), %d day(s)", path, len(s.Personas), len(s.Days))

	result := ValidationResult{
		Path:     path,
		Personas: len(s.Personas),
		Days:     len(s.Days),
		Messages: s.MessageCount(),
		Errors:   script.Validate(s),
	}
	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}

	result.Valid = true
	result.Fingerprint = s.Fingerprint()
	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Script valid: %d persona(s), %d day(s), %d message(s)\n",
		result.Personas, result.Days, result.Messages)
	formatter.VerboseLog("Fingerprint %s", result.Fingerprint)
	return nil
}

// outputValidationErrors reports every error and returns exit code 1.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", e.Code, e.Field, e.Message)
	}
	return exitErr
}
