package harness

import (
	"context"
	"fmt"
	"io"
)

// Execute services one request end to end: build the LM binding, load the
// program and optional metric, evaluate every example, and aggregate. A
// returned error is always load-level; per-example failures are reported
// inside the Report and never surface here.
func Execute(ctx context.Context, req *Request, progOutput io.Writer) (*Report, error) {
	lm, err := NewBinding(req.TaskLmConfig)
	if err != nil {
		return nil, err
	}
	prog, err := LoadProgram(req.ProgramCode, lm, progOutput)
	if err != nil {
		return nil, err
	}
	metric, err := LoadMetric(req.MetricFnCode)
	if err != nil {
		return nil, err
	}
	ev := &Evaluator{Program: prog, Metric: metric}
	return ev.Run(ctx, req.Examples), nil
}

// Evaluator drives the sequential per-example loop over a loaded program
// and optional metric.
type Evaluator struct {
	Program *Program
	Metric  *Metric
}

// Run evaluates every example in order and aggregates the results. Results,
// scores, and traces are appended in lockstep, so index i of each always
// describes example i. One example's failure never aborts the batch.
func (e *Evaluator) Run(ctx context.Context, examples []map[string]any) *Report {
	report := &Report{
		Success: true,
		Results: make([]ExampleResult, 0, len(examples)),
		Scores:  make([]float64, 0, len(examples)),
		Traces:  make([][]TraceEntry, 0, len(examples)),
	}
	for _, example := range examples {
		result, entries := e.evalOne(ctx, example)
		report.Results = append(report.Results, result)
		report.Scores = append(report.Scores, result.Score)
		report.Traces = append(report.Traces, entries)
	}
	report.AverageScore = mean(report.Scores)
	return report
}

// evalOne runs one example through invoke and scoring. Any error along the
// way, including input construction and scoring, collapses to a failed
// result with empty outputs and an empty trace.
func (e *Evaluator) evalOne(ctx context.Context, example map[string]any) (ExampleResult, []TraceEntry) {
	inputs, err := exampleInputs(example)
	if err != nil {
		return failedResult(err)
	}

	rec := NewRecorder()
	outputs, err := e.Program.Invoke(ctx, rec, inputs)
	if err != nil {
		return failedResult(err)
	}

	var score float64
	var feedback *string
	if e.Metric != nil {
		score, feedback, err = e.Metric.Score(inputs, outputs)
		if err != nil {
			return failedResult(err)
		}
	}

	if outputs == nil {
		outputs = make(map[string]any)
	}
	return ExampleResult{Outputs: outputs, Score: score, Feedback: feedback}, rec.Drain()
}

// exampleInputs builds the input mapping for one example: the "inputs"
// sub-mapping when present, otherwise the whole example.
func exampleInputs(example map[string]any) (map[string]any, error) {
	raw, ok := example["inputs"]
	if !ok {
		return example, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("example 'inputs' field is %T, not a mapping", raw)
	}
	return m, nil
}

func failedResult(err error) (ExampleResult, []TraceEntry) {
	msg := err.Error()
	return ExampleResult{Outputs: make(map[string]any), Error: &msg}, []TraceEntry{}
}

func mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
