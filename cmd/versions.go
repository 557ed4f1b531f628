package cmd

import (
	"encoding/json"
	"fmt"
	"os/user"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"testctl/internal/app"
	"testctl/internal/cli"
	"testctl/internal/testcase"
	"testctl/internal/versioning"
)

func newVersionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Store and compare versions of a user story's test set",
		Long: `Every add stores a new version, even when nothing changed. Similarity to
the previous version is reported and logged as a warning above
versioning.similarity_threshold.

Example usage:
  testctl versions add cases/login.yaml --user-story US-42 --author ada
  testctl versions list US-42
  testctl versions show 7
  testctl versions compare 6 7`,
	}

	withVersions := func(run func(cmd *cobra.Command, m *versioning.Manager, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), app.Options{Stub: true})
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, a.Versions, args)
		}
	}

	var userStory, author string
	add := &cobra.Command{
		Use:   "add <file|dir>",
		Short: "Store the cases in a file as the next version",
		Args:  cobra.ExactArgs(1),
		RunE: withVersions(func(cmd *cobra.Command, m *versioning.Manager, args []string) error {
			cases, err := testcase.Load(args[0])
			if err != nil {
				return err
			}
			if author == "" {
				author = currentUser()
			}
			res, err := m.AddVersion(cmd.Context(), userStory, cases, author)
			if err != nil {
				return err
			}
			p, err := printer(cmd)
			if err != nil {
				return err
			}
			return p.PrintAddResult(res)
		}),
	}
	add.Flags().StringVar(&userStory, "user-story", "", "User story the cases belong to")
	add.Flags().StringVar(&author, "author", "", "Author of the version (default: current user)")
	_ = add.MarkFlagRequired("user-story")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "list <user-story>",
			Short: "List the versions of a user story, oldest first",
			Args:  cobra.ExactArgs(1),
			RunE: withVersions(func(cmd *cobra.Command, m *versioning.Manager, args []string) error {
				versions, err := m.ListVersions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				p, err := printer(cmd)
				if err != nil {
					return err
				}
				return p.PrintVersions(versions)
			}),
		},
		&cobra.Command{
			Use:   "show <version-id>",
			Short: "Print the test cases stored with a version",
			Args:  cobra.ExactArgs(1),
			RunE: withVersions(func(cmd *cobra.Command, m *versioning.Manager, args []string) error {
				id, err := parseVersionID(args[0])
				if err != nil {
					return err
				}
				cases, err := m.GetTestCases(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeCases(cmd, cases)
			}),
		},
		&cobra.Command{
			Use:   "compare <version-id> <version-id>",
			Short: "Show the similarity and diff between two versions",
			Args:  cobra.ExactArgs(2),
			RunE: withVersions(func(cmd *cobra.Command, m *versioning.Manager, args []string) error {
				a, err := parseVersionID(args[0])
				if err != nil {
					return err
				}
				b, err := parseVersionID(args[1])
				if err != nil {
					return err
				}
				cmp, err := m.CompareVersions(cmd.Context(), a, b)
				if err != nil {
					return err
				}
				p, err := printer(cmd)
				if err != nil {
					return err
				}
				return p.PrintComparison(cmp)
			}),
		},
	)
	return cmd
}

func parseVersionID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid version id %q", s)
	}
	return id, nil
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// writeCases prints cases as JSON with -o json and as a loadable YAML file
// otherwise.
func writeCases(cmd *cobra.Command, cases []testcase.TestCase) error {
	if rootOutput == string(cli.OutputFormatJSON) {
		data, err := json.MarshalIndent(cases, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	data, err := yaml.Marshal(map[string]interface{}{"test_cases": cases})
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
