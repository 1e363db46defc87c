// Package harness implements the single-shot evaluation engine: it loads a
// JavaScript-defined program into an embedded interpreter, binds a configured
// language model to it, runs it against a batch of labeled examples while
// capturing per-example execution traces, and aggregates the results into a
// single report.
package harness

// Default language-model parameters applied when the request omits them.
const (
	DefaultModel       = "openai/gpt-4o-mini"
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.7
)

// Request is the single structured input consumed per process invocation.
type Request struct {
	// ProgramCode is the JavaScript source that must define a top-level
	// "program" object with forward(inputs) and setLM(lm).
	ProgramCode string `json:"programCode" yaml:"programCode"`

	// Examples is the ordered batch to evaluate. Each example is a mapping
	// of field name to value, optionally partitioned into an "inputs"
	// sub-mapping.
	Examples []map[string]any `json:"examples" yaml:"examples"`

	// TaskLmConfig configures the language model bound to the program.
	TaskLmConfig *LMConfig `json:"taskLmConfig" yaml:"taskLmConfig"`

	// MetricFnCode optionally defines a top-level metric_fn(example,
	// prediction) used to score each prediction.
	MetricFnCode string `json:"metricFnCode" yaml:"metricFnCode"`
}

// LMConfig describes the language model to bind to the loaded program.
// MaxTokens and Temperature are pointers so that an explicit zero survives
// default application.
type LMConfig struct {
	// Model is a provider-qualified identifier, e.g. "openai/gpt-4o-mini"
	// or "anthropic/claude-sonnet-4-20250514". A bare name defaults to the
	// openai provider.
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the provider. When empty, the provider's
	// conventional environment variable is consulted at call time.
	APIKey string `json:"apiKey" yaml:"apiKey"`

	// APIBase optionally overrides the provider endpoint.
	APIBase string `json:"apiBase" yaml:"apiBase"`

	MaxTokens   *int     `json:"maxTokens" yaml:"maxTokens"`
	Temperature *float64 `json:"temperature" yaml:"temperature"`
}

// TraceEntry is one normalized sub-invocation record captured during a
// single top-level program call.
type TraceEntry struct {
	Module  string            `json:"module"`
	Inputs  map[string]string `json:"inputs"`
	Outputs map[string]string `json:"outputs"`
}

// ExampleResult is the normalized outcome for one example. Exactly one of
// the success fields (Outputs/Score/Feedback) or Error carries information:
// when Error is set, Outputs is empty and Score is 0.
type ExampleResult struct {
	Outputs  map[string]any `json:"outputs"`
	Score    float64        `json:"score"`
	Feedback *string        `json:"feedback"`
	Error    *string        `json:"error"`
}

// Report is the aggregate response for a serviced request. Results, Scores,
// and Traces are parallel: index i of each describes the same example.
type Report struct {
	Success      bool            `json:"success"`
	Results      []ExampleResult `json:"results"`
	Scores       []float64       `json:"scores"`
	Traces       [][]TraceEntry  `json:"traces"`
	AverageScore float64         `json:"average_score"`
}

// Failure is the top-level envelope for requests that could not be serviced
// at all: the request could not be parsed, or the program/metric could not
// be loaded. Per-example failures never produce a Failure.
type Failure struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Traceback string `json:"traceback,omitempty"`
}
