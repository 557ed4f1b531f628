package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"testctl/internal/app"
	"testctl/internal/cli"
	"testctl/internal/config"
	"testctl/pkg/logging"
)

var (
	rootDebug      bool
	rootVerbose    bool
	rootConfigPath string
	rootOutput     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "testctl",
	Short: "Run natural-language and structured test cases across UI, mobile, API and SQL backends",
	Long: `testctl routes each test case to a web UI, mobile, API or SQL backend,
runs its steps with retries and self-healing locators, and records every
run. It also keeps versioned test sets and a versioned locator store.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. invalid arguments, failed runs)
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.InitForCLI(logLevel(), os.Stderr)
	},
}

func logLevel() logging.LogLevel {
	switch {
	case rootDebug:
		return logging.LevelDebug
	case rootVerbose:
		return logging.LevelInfo
	}
	return logging.LevelWarn
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "testctl version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&rootVerbose, "verbose", false, "Enable info logging and attachment output")
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Path to a config file layered over the user and project config")
	rootCmd.PersistentFlags().StringVarP(&rootOutput, "output", "o", "table", "Output format: table, json or yaml")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newLocatorsCmd())
	rootCmd.AddCommand(newVersionsCmd())
	rootCmd.AddCommand(newDedupCmd())
	rootCmd.AddCommand(newWaitCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(rootConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openApp loads the configuration and builds the application.
func openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, opts)
}

func printer(cmd *cobra.Command) (*cli.Printer, error) {
	format, err := cli.ParseOutputFormat(rootOutput)
	if err != nil {
		return nil, err
	}
	return cli.NewPrinter(cmd.OutOrStdout(), format), nil
}
