package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	partialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	nameStyle    = lipgloss.NewStyle().Bold(true)
	backendStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// StatusStyle returns the style used to render a status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "passed":
		return passedStyle
	case "failed":
		return failedStyle
	case "partial":
		return partialStyle
	}
	return skippedStyle
}

// ConsoleReporter prints one line when a test starts and one when it
// finishes. With verbose set, attachment names are printed too.
type ConsoleReporter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// NewConsoleReporter writes to out.
func NewConsoleReporter(out io.Writer, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{out: out, verbose: verbose}
}

func (r *ConsoleReporter) printf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *ConsoleReporter) StartTest(name, backend string) TestScope {
	r.printf("▶ %s %s\n", nameStyle.Render(name), backendStyle.Render("["+backend+"]"))
	return &consoleScope{reporter: r, name: name, started: time.Now()}
}

type consoleScope struct {
	reporter *ConsoleReporter
	name     string
	started  time.Time
	once     sync.Once
}

func (s *consoleScope) AttachText(name, text string) {
	if s.reporter.verbose {
		s.reporter.printf("  %s %s\n", dimStyle.Render("attached"), name)
	}
}

func (s *consoleScope) AttachBytes(name, mimeType string, data []byte) {
	if s.reporter.verbose {
		s.reporter.printf("  %s %s (%s, %d bytes)\n", dimStyle.Render("attached"), name, mimeType, len(data))
	}
}

func (s *consoleScope) Close(status string) {
	s.once.Do(func() {
		elapsed := time.Since(s.started).Round(time.Millisecond)
		s.reporter.printf("%s %s %s\n", StatusStyle(status).Render(status), s.name, dimStyle.Render(fmt.Sprintf("(%v)", elapsed)))
	})
}
