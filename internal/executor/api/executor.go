// Package api executes HTTP steps.
package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"testctl/internal/executor"
	"testctl/internal/reporting"
	"testctl/internal/step"
	"testctl/internal/translator"
	"testctl/pkg/logging"
)

// Translator turns a command into a request.
type Translator interface {
	TranslateAPI(ctx context.Context, command, baseURL string) translator.APIRequest
}

// Executor performs API steps over HTTP.
type Executor struct {
	executor.NoRecovery

	client     *http.Client
	translator Translator
	baseURL    string
}

var _ executor.Executor = (*Executor)(nil)

// New creates an API executor. A nil client gets one with timeout.
func New(tr Translator, baseURL string, client *http.Client, timeout time.Duration) *Executor {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Executor{client: client, translator: tr, baseURL: baseURL}
}

func (e *Executor) Kind() step.Kind { return step.KindAPI }

func (e *Executor) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// ExecuteStep translates the command, sends it and checks the response.
func (e *Executor) ExecuteStep(ctx context.Context, s step.Step) error {
	a, err := step.ParseAPI(s)
	if err != nil {
		return err
	}

	req := e.translator.TranslateAPI(ctx, a.Command, e.baseURL)
	if a.HasExpectedStatus {
		req.ExpectedStatus = a.ExpectedStatus
	}
	if req.ExpectedStatus == 0 {
		req.ExpectedStatus = translator.DefaultExpectedStatus
	}

	ev := reporting.EvidenceFrom(ctx)
	if data, err := json.MarshalIndent(req, "", "  "); err == nil {
		ev.AttachText("api_request", string(data))
	}

	logging.Debug("APIExecutor", "%s %s", req.Method, req.URL)
	status, body, err := e.do(ctx, req)
	if err != nil {
		return &step.TransportError{Op: req.Method + " " + req.URL, Err: err}
	}
	ev.AttachText("api_response", fmt.Sprintf("HTTP %d\n\n%s", status, body))

	if status != req.ExpectedStatus {
		return &step.AssertionError{What: "status", Expected: req.ExpectedStatus, Actual: status}
	}
	if a.HasExpectedBody {
		if err := checkBody(a.ExpectedBody, body); err != nil {
			return err
		}
	}
	if a.SnapshotHash != "" {
		sum := sha256.Sum256(body)
		if actual := hex.EncodeToString(sum[:]); !strings.EqualFold(actual, a.SnapshotHash) {
			return &step.AssertionError{What: "snapshot hash", Expected: a.SnapshotHash, Actual: actual}
		}
	}
	return nil
}

func (e *Executor) do(ctx context.Context, r translator.APIRequest) (int, []byte, error) {
	var body io.Reader
	isJSON := false
	switch b := r.Body.(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode body: %w", err)
		}
		body = bytes.NewReader(data)
		isJSON = true
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if isJSON && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// checkBody compares each key of a map expectation exactly, or looks for
// any other expectation as a substring of the raw body.
func checkBody(expected interface{}, raw []byte) error {
	want, ok := normalize(expected).(map[string]interface{})
	if !ok {
		needle, isStr := expected.(string)
		if !isStr {
			data, _ := json.Marshal(expected)
			needle = string(data)
		}
		if !strings.Contains(string(raw), needle) {
			return &step.AssertionError{What: "body containing", Expected: needle, Actual: string(raw)}
		}
		return nil
	}

	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		return &step.AssertionError{What: "JSON object body", Expected: want, Actual: string(raw)}
	}
	for k, v := range want {
		if actual, present := got[k]; !present || !reflect.DeepEqual(actual, v) {
			return &step.AssertionError{What: fmt.Sprintf("body field %q", k), Expected: v, Actual: got[k]}
		}
	}
	return nil
}

// normalize round-trips v through JSON so YAML-decoded values compare
// equal to decoded response values.
func normalize(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
