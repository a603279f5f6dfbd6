package tasks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/pulseload/pulseload/internal/engine"
	"github.com/pulseload/pulseload/internal/task"
)

// HTTPOperation is one request shape the HTTP task cycles through.
type HTTPOperation struct {
	// Method is the HTTP method. Default: GET.
	Method string `yaml:"method,omitempty" json:"method,omitempty"`

	// Path is appended to the base URL. Path parameters in {braces} are
	// filled with generated values.
	Path string `yaml:"path" json:"path"`

	// Body is an optional request body template. Placeholders of the form
	// {{name}}, {{email}}, {{uuid}}, {{word}} and {{number}} are replaced
	// with generated data per request.
	Body string `yaml:"body,omitempty" json:"body,omitempty"`
}

// HTTPConfig parameterises the HTTP task.
type HTTPConfig struct {
	// BaseURL is the target system root, e.g. "http://localhost:8080".
	BaseURL string `yaml:"baseURL" json:"baseURL"`

	// Operations is the request cycle. Required unless OpenAPIPath is set.
	Operations []HTTPOperation `yaml:"operations,omitempty" json:"operations,omitempty"`

	// OpenAPIPath optionally derives the operation cycle from an
	// OpenAPI 3 document instead of listing operations by hand.
	OpenAPIPath string `yaml:"openapiPath,omitempty" json:"openapiPath,omitempty"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Timeout bounds each request. Default: 10s.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// HTTPTask drives HTTP requests against a target system, cycling through
// the configured operations. A response below 400 counts as success.
//
// Thread Safety: Safe for concurrent Execute calls.
type HTTPTask struct {
	config     HTTPConfig
	operations []HTTPOperation
	client     *http.Client

	requests atomic.Uint64
}

// NewHTTPTask creates an HTTP task.
func NewHTTPTask(config HTTPConfig) (*HTTPTask, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("tasks: http baseURL is required")
	}
	if len(config.Operations) == 0 && config.OpenAPIPath == "" {
		return nil, fmt.Errorf("tasks: http task requires operations or an OpenAPI document")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &HTTPTask{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        200,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Name identifies the task.
func (t *HTTPTask) Name() string { return "http" }

// ExecutionStrategy hints the cooperative strategy: requests block on I/O,
// so one goroutine per invocation keeps slow responses from stalling the
// release loop.
func (t *HTTPTask) ExecutionStrategy() engine.Strategy { return engine.StrategyCooperative }

// Init resolves the operation cycle, loading the OpenAPI document when
// configured.
func (t *HTTPTask) Init() error {
	t.operations = append([]HTTPOperation(nil), t.config.Operations...)

	if t.config.OpenAPIPath != "" {
		ops, err := loadOpenAPIOperations(t.config.OpenAPIPath)
		if err != nil {
			return err
		}
		t.operations = append(t.operations, ops...)
	}

	if len(t.operations) == 0 {
		return fmt.Errorf("tasks: http task resolved no operations")
	}
	return nil
}

// Execute performs one request.
func (t *HTTPTask) Execute(ctx context.Context, iteration uint64) task.Result {
	op := t.operations[iteration%uint64(len(t.operations))]

	method := op.Method
	if method == "" {
		method = http.MethodGet
	}

	url := t.config.BaseURL + t.fillPath(op.Path)

	var body io.Reader
	if op.Body != "" {
		body = strings.NewReader(t.expandTemplate(op.Body))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return task.Failure(fmt.Errorf("tasks: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range t.config.Headers {
		req.Header.Set(k, v)
	}

	t.requests.Add(1)
	resp, err := t.client.Do(req)
	if err != nil {
		return task.Failure(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return task.Failure(fmt.Errorf("tasks: %s %s returned status %d", method, op.Path, resp.StatusCode))
	}
	return task.Success(resp.StatusCode)
}

// Teardown closes idle connections.
func (t *HTTPTask) Teardown() error {
	t.client.CloseIdleConnections()
	return nil
}

// Requests returns the number of requests issued so far.
func (t *HTTPTask) Requests() uint64 {
	return t.requests.Load()
}

// fillPath substitutes {param} segments with generated identifiers.
func (t *HTTPTask) fillPath(path string) string {
	for {
		start := strings.Index(path, "{")
		if start == -1 {
			return path
		}
		end := strings.Index(path[start:], "}")
		if end == -1 {
			return path
		}
		path = path[:start] + gofakeit.UUID() + path[start+end+1:]
	}
}

// expandTemplate substitutes {{placeholder}} markers with generated data.
func (t *HTTPTask) expandTemplate(template string) string {
	replacements := map[string]func() string{
		"{{name}}":   gofakeit.Name,
		"{{email}}":  gofakeit.Email,
		"{{uuid}}":   gofakeit.UUID,
		"{{word}}":   gofakeit.Word,
		"{{number}}": func() string { return fmt.Sprintf("%d", gofakeit.Number(1, 100000)) },
	}
	for marker, gen := range replacements {
		for strings.Contains(template, marker) {
			template = strings.Replace(template, marker, gen(), 1)
		}
	}
	return template
}

// loadOpenAPIOperations derives the operation cycle from an OpenAPI 3
// document. Only path and method are used; request bodies stay empty.
func loadOpenAPIOperations(path string) ([]HTTPOperation, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("tasks: load OpenAPI document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("tasks: invalid OpenAPI document: %w", err)
	}

	var ops []HTTPOperation
	for _, p := range doc.Paths.InMatchingOrder() {
		item := doc.Paths.Find(p)
		if item == nil {
			continue
		}
		for method := range item.Operations() {
			ops = append(ops, HTTPOperation{Method: method, Path: p})
		}
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("tasks: OpenAPI document %s defines no operations", path)
	}
	return ops, nil
}

// Compile-time interface checks
var (
	_ task.Task             = (*HTTPTask)(nil)
	_ engine.StrategyHinter = (*HTTPTask)(nil)
)
