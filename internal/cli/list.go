package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strand/internal/harness"
)

// suiteInfo is the JSON shape for a listed suite.
type suiteInfo struct {
	Name  string     `json:"name"`
	Tests []testInfo `json:"tests"`
}

type testInfo struct {
	Name        string `json:"name"`
	Suspendable bool   `json:"suspendable"`
	Timeout     string `json:"timeout,omitempty"` // explicit per-test timeout, if any
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered suites and their tests",
		Long: `List every registered suite with its tests, whether each test is
suspendable, and any explicit per-test timeout.

Example:
  strand list
  strand list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listSuites(rootOpts, cmd)
		},
	}
	return cmd
}

func listSuites(opts *RootOptions, cmd *cobra.Command) error {
	suites := harness.Suites()
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if opts.Format == "json" {
		infos := make([]suiteInfo, 0, len(suites))
		for _, s := range suites {
			info := suiteInfo{Name: s.Name, Tests: make([]testInfo, 0, len(s.Tests))}
			for _, t := range s.Tests {
				ti := testInfo{Name: t.Name, Suspendable: t.Suspendable()}
				if d := t.ExplicitTimeout(); d > 0 {
					ti.Timeout = d.String()
				}
				info.Tests = append(info.Tests, ti)
			}
			infos = append(infos, info)
		}
		return formatter.Success(infos)
	}

	if len(suites) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no suites registered")
		return nil
	}
	for _, s := range suites {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d tests)\n", s.Name, len(s.Tests))
		for _, t := range s.Tests {
			kind := "sync"
			if t.Suspendable() {
				kind = "async"
			}
			if d := t.ExplicitTimeout(); d > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-40s %-5s timeout=%s\n", t.Name, kind, d)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-40s %s\n", t.Name, kind)
			}
		}
	}
	return nil
}
