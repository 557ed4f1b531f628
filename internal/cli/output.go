// Package cli renders command results as tables, JSON or YAML.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"testctl/internal/locator"
	"testctl/internal/recorder"
	"testctl/internal/router"
	"testctl/internal/step"
	"testctl/internal/versioning"
)

// OutputFormat represents the output format for CLI commands
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates a --output value. Empty means table.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "", OutputFormatTable:
		return OutputFormatTable, nil
	case OutputFormatJSON, OutputFormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// Printer writes results in one format.
type Printer struct {
	out    io.Writer
	format OutputFormat
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, format OutputFormat) *Printer {
	if format == "" {
		format = OutputFormatTable
	}
	return &Printer{out: out, format: format}
}

// print writes v as JSON or YAML, or calls render for tables.
func (p *Printer) print(v interface{}, render func(t table.Writer)) error {
	switch p.format {
	case OutputFormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		_, err = fmt.Fprintln(p.out, string(data))
		return err
	case OutputFormatYAML:
		return p.outputYAML(v)
	case OutputFormatTable:
		t := table.NewWriter()
		t.SetOutputMirror(p.out)
		t.SetStyle(table.StyleRounded)
		render(t)
		t.Render()
		return nil
	}
	return fmt.Errorf("unsupported output format: %s", p.format)
}

// outputYAML goes through JSON so that json tags name the fields.
func (p *Printer) outputYAML(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	yamlData, err := yaml.Marshal(generic)
	if err != nil {
		return fmt.Errorf("failed to convert to YAML: %w", err)
	}
	_, err = p.out.Write(yamlData)
	return err
}

func header(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = text.FgHiCyan.Sprint(strings.ToUpper(c))
	}
	return row
}

// truncate shortens s to width display cells.
func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "...")
}

func dash(s string) string {
	if s == "" {
		return text.FgHiBlack.Sprint("-")
	}
	return s
}

// formatStatus adds color coding to a run or step status.
func formatStatus(s recorder.Status) string {
	switch s {
	case recorder.StatusPassed:
		return text.FgGreen.Sprint(string(s))
	case recorder.StatusFailed:
		return text.FgRed.Sprint(string(s))
	case recorder.StatusPartial:
		return text.FgYellow.Sprint(string(s))
	case recorder.StatusSkipped:
		return text.FgHiBlack.Sprint(string(s))
	}
	return string(s)
}

// PrintBatch prints one row per case and a status tally.
func (p *Printer) PrintBatch(b router.Batch) error {
	return p.print(b, func(t table.Writer) {
		t.SetTitle("Batch " + b.ID)
		t.AppendHeader(header("case", "backend", "status", "steps", "error"))
		for _, s := range b.Summaries {
			t.AppendRow(table.Row{
				s.Identifier,
				text.FgCyan.Sprint(dash(string(s.Backend))),
				formatStatus(s.Status),
				len(s.Steps),
				dash(truncate(s.Error, 60)),
			})
		}

		counts := b.Counts()
		var parts []string
		for _, st := range []recorder.Status{recorder.StatusPassed, recorder.StatusFailed, recorder.StatusPartial, recorder.StatusSkipped} {
			if n := counts[st]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, st))
			}
		}
		t.AppendFooter(table.Row{"Total", "", strings.Join(parts, ", "), "", ""})
	})
}

// Classification is the backend chosen for one case.
type Classification struct {
	Identifier string    `json:"identifier"`
	Backend    step.Kind `json:"backend"`
}

// PrintClassifications prints identifier to backend pairs.
func (p *Printer) PrintClassifications(rows []Classification) error {
	return p.print(rows, func(t table.Writer) {
		t.AppendHeader(header("case", "backend"))
		for _, r := range rows {
			t.AppendRow(table.Row{r.Identifier, text.FgCyan.Sprint(string(r.Backend))})
		}
	})
}

// PrintLocators prints locator records.
func (p *Printer) PrintLocators(records []locator.Record) error {
	if records == nil {
		records = []locator.Record{}
	}
	return p.print(records, func(t table.Writer) {
		t.AppendHeader(header("step key", "type", "value", "version", "active", "updated"))
		for _, r := range records {
			active := text.FgHiBlack.Sprint("no")
			if r.Active {
				active = text.FgGreen.Sprint("yes")
			}
			t.AppendRow(table.Row{
				truncate(r.StepKey, 40),
				r.Locator.Type,
				truncate(r.Locator.Value, 50),
				r.Version,
				active,
				r.UpdatedAt.Format("2006-01-02 15:04:05"),
			})
		}
	})
}

// PrintVersions prints the versions of a user story.
func (p *Printer) PrintVersions(versions []versioning.Version) error {
	if versions == nil {
		versions = []versioning.Version{}
	}
	return p.print(versions, func(t table.Writer) {
		t.AppendHeader(header("id", "version", "author", "timestamp", "similarity"))
		for _, v := range versions {
			t.AppendRow(table.Row{v.ID, v.Number, dash(v.Author), v.Timestamp.Format("2006-01-02 15:04:05"), fmt.Sprintf("%.2f", v.Similarity)})
		}
	})
}

func appendDiff(t table.Writer, d versioning.Diff) {
	join := func(ids []string) string { return dash(truncate(strings.Join(ids, ", "), 70)) }
	t.AppendRow(table.Row{text.FgGreen.Sprint("added"), join(d.Added)})
	t.AppendRow(table.Row{text.FgRed.Sprint("removed"), join(d.Removed)})
	t.AppendRow(table.Row{"unchanged", join(d.Unchanged)})
}

// PrintAddResult prints a newly stored version.
func (p *Printer) PrintAddResult(res versioning.AddResult) error {
	return p.print(res, func(t table.Writer) {
		t.SetTitle(fmt.Sprintf("%s version %d", res.UserStory, res.Number))
		t.AppendHeader(header("property", "value"))
		t.AppendRow(table.Row{"id", res.ID})
		t.AppendRow(table.Row{"similarity", fmt.Sprintf("%.2f", res.Similarity)})
		appendDiff(t, res.Diff)
	})
}

// PrintComparison prints two versions' similarity and diff.
func (p *Printer) PrintComparison(c versioning.Comparison) error {
	return p.print(c, func(t table.Writer) {
		t.SetTitle(fmt.Sprintf("%s v%d -> v%d", c.To.UserStory, c.From.Number, c.To.Number))
		t.AppendHeader(header("property", "value"))
		t.AppendRow(table.Row{"similarity", fmt.Sprintf("%.2f", c.Similarity)})
		appendDiff(t, c.Diff)
	})
}

// Duplicates is the outcome of a dedup scan.
type Duplicates struct {
	Exact    [][]string                 `json:"exact"`
	Semantic []versioning.DuplicatePair `json:"semantic"`
}

// PrintDuplicates prints exact groups followed by similar pairs.
func (p *Printer) PrintDuplicates(d Duplicates) error {
	return p.print(d, func(t table.Writer) {
		t.AppendHeader(header("kind", "cases", "similarity"))
		for _, g := range d.Exact {
			t.AppendRow(table.Row{"exact", strings.Join(g, ", "), "1.00"})
		}
		for _, pair := range d.Semantic {
			t.AppendRow(table.Row{"semantic", pair.A + ", " + pair.B, fmt.Sprintf("%.2f", pair.Similarity)})
		}
		if len(d.Exact)+len(d.Semantic) == 0 {
			t.AppendRow(table.Row{text.FgYellow.Sprint("none"), "", ""})
		}
	})
}

// PrintIndicators prints busy indicators per context.
func (p *Printer) PrintIndicators(byContext map[string][]string) error {
	return p.print(byContext, func(t table.Writer) {
		t.AppendHeader(header("context", "indicator"))
		contexts := make([]string, 0, len(byContext))
		for c := range byContext {
			contexts = append(contexts, c)
		}
		sort.Strings(contexts)
		for _, c := range contexts {
			for _, ind := range byContext[c] {
				t.AppendRow(table.Row{c, ind})
			}
		}
	})
}
