package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strand/internal/harness"
	"github.com/roach88/strand/internal/manifest"
)

// validationResult is the JSON shape for a validation report.
type validationResult struct {
	Path       string `json:"path"`
	Suite      string `json:"suite"`
	Tests      int    `json:"tests"`
	Registered bool   `json:"registered"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate a CUE suite manifest",
		Long: `Parse and validate a CUE suite manifest without running anything.

Checks the document structure, rejects bare-scalar timeout entries and
unknown fields, and reports whether the manifest's suite is registered.

Example:
  strand validate ./suite.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateManifest(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func validateManifest(opts *RootOptions, cmd *cobra.Command, path string) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	man, err := manifest.Load(path)
	if err != nil {
		formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "invalid manifest", err)
	}

	_, registered := harness.Lookup(man.Name)
	result := validationResult{
		Path:       path,
		Suite:      man.Name,
		Tests:      len(man.Tests),
		Registered: registered,
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (suite %q, %d test entries)\n", path, man.Name, len(man.Tests))
	if !registered {
		fmt.Fprintf(cmd.OutOrStdout(), "note: suite %q is not registered in this binary\n", man.Name)
	}
	return nil
}
