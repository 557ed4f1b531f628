package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"testctl/internal/app"
	"testctl/pkg/logging"
)

func newServeCmd() *cobra.Command {
	var stub bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve testctl as an MCP server over stdio",
		Long: `Starts an MCP server on stdin and stdout that exposes running cases,
classification, the locator store and test set versions as tools.

Logs are written to stderr as JSON so that stdout carries only the
protocol. Configure it in your AI assistant's MCP settings, e.g.:

  {"command": "testctl", "args": ["serve"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.InitForJSON(logLevel(), os.Stderr)

			a, err := openApp(cmd.Context(), app.Options{Stub: stub})
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer a.Close()

			if err := a.MCPServer(rootCmd.Version).ServeStdio(); err != nil {
				return fmt.Errorf("mcp server error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stub, "stub", false, "Use stub browser and mobile sessions")
	return cmd
}
