package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/roach88/strand/internal/config"
	"github.com/roach88/strand/internal/harness"
	"github.com/roach88/strand/internal/manifest"
	"github.com/roach88/strand/internal/report"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Manifest string
	EnvFile  string
	Suites   []string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run registered test suites",
		Long: `Run the registered test suites on per-case event loops.

Each test gets a fresh event loop, the suite's setup/teardown hooks, and
an effective timeout resolved per invocation (environment override, then
explicit per-test timeout, then the default). Outcomes stream to stdout in
text or JSON.

Example:
  strand run
  strand run --suite integration --manifest ./suite.cue
  strand run --config ./strand.yaml --env-file ./.env --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML runner config")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "path to CUE suite manifest")
	cmd.Flags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file loaded before the run")
	cmd.Flags().StringArrayVar(&opts.Suites, "suite", nil, "run only the named suite (repeatable)")

	return cmd
}

func runSuites(opts *RunOptions, cmd *cobra.Command) error {
	// Start from the config file (if any); explicit flags win.
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	manifestPath := opts.Manifest
	if manifestPath == "" {
		manifestPath = cfg.Manifest
	}
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = cfg.EnvFile
	}
	selected := opts.Suites
	if len(selected) == 0 {
		selected = cfg.Suites
	}
	format := opts.Format
	if !cmd.Flags().Changed("format") && cfg.Format != "" {
		format = cfg.Format
	}
	verbose := opts.Verbose || cfg.Verbose

	// Configure logging based on verbose flag
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	// Environment file: variables already set in the process win, so a
	// caller's scoped override is never clobbered by the file.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return WrapExitError(ExitCommandError, "failed to load env file", err)
		}
		logger.Debug("env file loaded", "path", envFile)
	}

	var man *manifest.Manifest
	if manifestPath != "" {
		m, err := manifest.Load(manifestPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load manifest", err)
		}
		man = m
		logger.Debug("manifest loaded",
			"path", manifestPath,
			"suite", man.Name,
			"test_entries", len(man.Tests),
		)
	}

	suites, err := selectSuites(selected)
	if err != nil {
		return err
	}
	if len(suites) == 0 {
		return NewExitError(ExitCommandError, "no suites registered")
	}

	runnerOpts := []harness.RunnerOption{
		harness.WithLogger(logger),
		harness.WithReporter(newReporter(format, cmd.OutOrStdout())),
	}
	if man != nil {
		if man.EnvVar != "" {
			runnerOpts = append(runnerOpts, harness.WithEnvVar(man.EnvVar))
		}
		if man.DefaultTimeout > 0 {
			runnerOpts = append(runnerOpts, harness.WithFallbackTimeout(man.DefaultTimeout))
		}
	}
	runner := harness.NewRunner(runnerOpts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var summary report.Summary
	for _, s := range suites {
		if man != nil && man.Name == s.Name {
			if err := man.ApplyTo(s); err != nil {
				return WrapExitError(ExitCommandError, "failed to apply manifest", err)
			}
		}
		outcomes, err := runner.RunSuite(ctx, s)
		for _, o := range outcomes {
			summary.Add(o)
		}
		if err != nil {
			return WrapExitError(ExitFailure, "run interrupted", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary.String())
	if !summary.OK() {
		return NewExitError(ExitFailure, summary.String())
	}
	return nil
}

// selectSuites resolves the suite filter against the registry. An unknown
// name is a command error - a filter that silently matches nothing would
// report green without running anything.
func selectSuites(names []string) ([]*harness.Suite, error) {
	if len(names) == 0 {
		return harness.Suites(), nil
	}
	suites := make([]*harness.Suite, 0, len(names))
	for _, name := range names {
		s, ok := harness.Lookup(name)
		if !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("suite %q is not registered", name))
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// newReporter builds the outcome reporter for the selected format.
func newReporter(format string, w io.Writer) report.Reporter {
	if format == "json" {
		return &report.JSONReporter{W: w}
	}
	return &report.TextReporter{W: w}
}
