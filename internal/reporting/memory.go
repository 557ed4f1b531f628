package reporting

import "sync"

// Attachment is one piece of recorded evidence.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// TestRecord is what a Memory reporter saw for one test.
type TestRecord struct {
	Name        string
	Backend     string
	Status      string
	Closed      bool
	Attachments []Attachment
}

// Memory keeps every scope in memory. It is meant for tests and for
// callers that want to return evidence themselves.
type Memory struct {
	mu    sync.Mutex
	tests []*TestRecord
}

// NewMemory creates an empty in-memory reporter.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) StartTest(name, backend string) TestScope {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &TestRecord{Name: name, Backend: backend}
	m.tests = append(m.tests, rec)
	return &memoryScope{m: m, rec: rec}
}

// Tests returns a snapshot of the recorded tests in start order.
func (m *Memory) Tests() []TestRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TestRecord, len(m.tests))
	for i, t := range m.tests {
		out[i] = *t
		out[i].Attachments = append([]Attachment(nil), t.Attachments...)
	}
	return out
}

type memoryScope struct {
	m   *Memory
	rec *TestRecord
}

func (s *memoryScope) AttachText(name, text string) {
	s.AttachBytes(name, MIMEText, []byte(text))
}

func (s *memoryScope) AttachBytes(name, mimeType string, data []byte) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.rec.Attachments = append(s.rec.Attachments, Attachment{Name: name, MIMEType: mimeType, Data: data})
}

func (s *memoryScope) Close(status string) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.rec.Closed {
		return
	}
	s.rec.Closed = true
	s.rec.Status = status
}
