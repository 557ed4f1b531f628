package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"testctl/pkg/logging"

	"github.com/google/uuid"
)

// FileReporter writes an Allure-compatible results directory: one
// <uuid>-result.json per test and one <uuid>-attachment.<ext> per
// attachment.
type FileReporter struct {
	dir string
	now func() time.Time
}

// NewFileReporter creates dir if needed.
func NewFileReporter(dir string) (*FileReporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &FileReporter{dir: dir, now: time.Now}, nil
}

// Dir returns the results directory.
func (r *FileReporter) Dir() string { return r.dir }

type allureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type allureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

type allureStatusDetails struct {
	Message string `json:"message,omitempty"`
}

type allureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	Name          string              `json:"name"`
	FullName      string              `json:"fullName"`
	Status        string              `json:"status"`
	StatusDetails allureStatusDetails `json:"statusDetails"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []allureLabel       `json:"labels"`
	Attachments   []allureAttachment  `json:"attachments"`
}

// StartTest opens a scope whose result file is written on Close.
func (r *FileReporter) StartTest(name, backend string) TestScope {
	return &fileScope{
		reporter: r,
		result: allureResult{
			UUID:        uuid.NewString(),
			HistoryID:   name,
			Name:        name,
			FullName:    backend + "." + name,
			Stage:       "running",
			Start:       r.now().UnixMilli(),
			Labels:      []allureLabel{{Name: "backend", Value: backend}, {Name: "framework", Value: "testctl"}},
			Attachments: []allureAttachment{},
		},
	}
}

type fileScope struct {
	reporter *FileReporter
	mu       sync.Mutex
	result   allureResult
	closed   bool
}

func (s *fileScope) AttachText(name, text string) {
	s.AttachBytes(name, MIMEText, []byte(text))
}

func (s *fileScope) AttachBytes(name, mimeType string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	source := fmt.Sprintf("%s-attachment.%s", uuid.NewString(), extension(mimeType))
	if err := os.WriteFile(filepath.Join(s.reporter.dir, source), data, 0644); err != nil {
		logging.Error("FileReporter", err, "Failed to write attachment %s", name)
		return
	}
	s.result.Attachments = append(s.result.Attachments, allureAttachment{Name: name, Source: source, Type: mimeType})
}

func (s *fileScope) Close(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	s.result.Status, s.result.StatusDetails.Message = allureStatus(status)
	s.result.Stage = "finished"
	s.result.Stop = s.reporter.now().UnixMilli()

	data, err := json.MarshalIndent(s.result, "", "  ")
	if err != nil {
		logging.Error("FileReporter", err, "Failed to encode result for %s", s.result.Name)
		return
	}
	path := filepath.Join(s.reporter.dir, s.result.UUID+"-result.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		logging.Error("FileReporter", err, "Failed to write result for %s", s.result.Name)
	}
}

// allureStatus maps a run status onto Allure's status set. Allure has no
// partial status; it is reported as broken.
func allureStatus(status string) (string, string) {
	switch status {
	case "passed", "failed", "skipped":
		return status, ""
	case "partial":
		return "broken", "some steps failed or were skipped"
	}
	return "unknown", status
}

func extension(mimeType string) string {
	switch mimeType {
	case MIMEPNG:
		return "png"
	case MIMEJSON:
		return "json"
	case MIMEText:
		return "txt"
	}
	return "bin"
}
