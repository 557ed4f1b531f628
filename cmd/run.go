package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"testctl/internal/app"
	"testctl/internal/recorder"
	"testctl/internal/step"
	"testctl/internal/testcase"
)

type runOptions struct {
	parallel   int
	caseType   string
	report     bool
	resultsDir string
	stub       bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <file|dir>",
		Short: "Run the test cases in a YAML or JSON file or directory",
		Long: `Loads test cases from a file, or every .yaml, .yml and .json file in a
directory, classifies each case and runs it on its backend.

The command exits non-zero when any case ends failed or partial.

Example usage:
  testctl run cases/login.yaml
  testctl run cases/ --parallel 4 --report
  testctl run cases/smoke.yaml --type api -o json`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.parallel < 0 {
				return fmt.Errorf("parallel workers must not be negative, got %d", opts.parallel)
			}
			if opts.caseType != "" {
				if _, ok := step.ParseKind(opts.caseType); !ok {
					return fmt.Errorf("invalid type '%s', must be one of: ui, api, mobile, sql", opts.caseType)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCases(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.parallel, "parallel", 0, "Number of parallel workers (0 uses router.workers)")
	cmd.Flags().StringVar(&opts.caseType, "type", "", "Force every case onto one backend (ui, api, mobile, sql)")
	cmd.Flags().BoolVar(&opts.report, "report", false, "Write Allure-compatible results")
	cmd.Flags().StringVar(&opts.resultsDir, "results-dir", "", "Results directory for --report (default: reporting.results_dir)")
	cmd.Flags().BoolVar(&opts.stub, "stub", false, "Use stub browser and mobile sessions")
	_ = cmd.RegisterFlagCompletionFunc("type", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"ui", "api", "mobile", "sql"}, cobra.ShellCompDirectiveDefault
	})
	return cmd
}

func runCases(cmd *cobra.Command, path string, opts *runOptions) error {
	cases, err := testcase.Load(path)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "No test cases found in %s\n", path)
		return nil
	}
	if opts.caseType != "" {
		for i := range cases {
			cases[i].Type = opts.caseType
		}
	}

	p, err := printer(cmd)
	if err != nil {
		return err
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived interrupt signal, stopping run gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := openApp(ctx, app.Options{
		Stub:      opts.stub,
		Report:    opts.report,
		ReportDir: opts.resultsDir,
		Console:   cmd.ErrOrStderr(),
		Verbose:   rootVerbose,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	batch := a.Router.RunAll(ctx, cases, opts.parallel)
	if err := p.PrintBatch(batch); err != nil {
		return err
	}

	if !batch.OK() {
		counts := batch.Counts()
		return fmt.Errorf("%d of %d cases did not pass", counts[recorder.StatusFailed]+counts[recorder.StatusPartial], len(cases))
	}
	return nil
}
