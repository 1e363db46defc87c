package harness

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func loadTestProgram(t *testing.T, source string) *Program {
	t.Helper()
	prog, err := LoadProgram(source, &stubBinding{model: "stub-model"}, nil)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	return prog
}

func loadTestMetric(t *testing.T, source string) *Metric {
	t.Helper()
	metric, err := LoadMetric(source)
	if err != nil {
		t.Fatalf("unexpected metric load error: %v", err)
	}
	return metric
}

func TestExecute_EchoEndToEnd(t *testing.T) {
	req := &Request{
		ProgramCode: echoProgram,
		Examples: []map[string]any{
			{"x": "first"},
			{"x": "second"},
		},
		TaskLmConfig: &LMConfig{Model: "openai/gpt-4o-mini"},
	}

	report, err := Execute(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Success {
		t.Error("expected top-level success")
	}
	if len(report.Results) != 2 || len(report.Scores) != 2 || len(report.Traces) != 2 {
		t.Fatalf("expected parallel sequences of length 2, got %d/%d/%d",
			len(report.Results), len(report.Scores), len(report.Traces))
	}
	if report.Results[0].Outputs["y"] != "first" || report.Results[1].Outputs["y"] != "second" {
		t.Errorf("expected echoed outputs in order, got: %+v", report.Results)
	}
	for i, res := range report.Results {
		if res.Error != nil {
			t.Errorf("example %d: unexpected error %q", i, *res.Error)
		}
		if res.Feedback != nil {
			t.Errorf("example %d: expected absent feedback without a metric", i)
		}
		if res.Score != 0 {
			t.Errorf("example %d: expected score 0 without a metric, got %v", i, res.Score)
		}
	}
	if report.AverageScore != 0 {
		t.Errorf("expected average 0, got %v", report.AverageScore)
	}
	// zero sub-invocations yield empty traces, not absent ones
	for i, entries := range report.Traces {
		if entries == nil {
			t.Errorf("example %d: trace is nil, want empty", i)
		}
	}
}

func TestExecute_LoadFailureProducesNoReport(t *testing.T) {
	req := &Request{
		ProgramCode:  "var notProgram = 1;",
		Examples:     []map[string]any{{"x": "a"}},
		TaskLmConfig: &LMConfig{},
	}
	_, err := Execute(context.Background(), req, nil)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected LoadError, got: %v", err)
	}

	failure := NewFailure(err)
	if failure.Success {
		t.Error("expected success=false in failure envelope")
	}
	if !strings.Contains(failure.Error, "program") {
		t.Errorf("expected the envelope to identify the missing entry point, got: %s", failure.Error)
	}
}

func TestEvaluator_IsolatesFailingExample(t *testing.T) {
	prog := loadTestProgram(t, `
var program = {
	setLM: function(lm) {},
	forward: function(inputs) {
		if (inputs.x === "boom") { throw new Error("example exploded"); }
		trace("echo", {x: inputs.x}, {y: inputs.x});
		return {y: inputs.x};
	},
};
`)
	ev := &Evaluator{Program: prog}
	report := ev.Run(context.Background(), []map[string]any{
		{"x": "a"},
		{"x": "boom"},
		{"x": "c"},
	})

	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}

	failed := report.Results[1]
	if failed.Error == nil || !strings.Contains(*failed.Error, "example exploded") {
		t.Errorf("expected example 1 to carry the error, got: %+v", failed)
	}
	if len(failed.Outputs) != 0 {
		t.Errorf("expected empty outputs on failure, got: %v", failed.Outputs)
	}
	if failed.Score != 0 {
		t.Errorf("expected score 0 on failure, got %v", failed.Score)
	}
	if len(report.Traces[1]) != 0 {
		t.Errorf("expected empty trace for the failed example, got: %v", report.Traces[1])
	}

	// neighbors are unaffected and correctly ordered
	if report.Results[0].Outputs["y"] != "a" || report.Results[2].Outputs["y"] != "c" {
		t.Errorf("expected neighbors intact, got: %+v", report.Results)
	}
	if len(report.Traces[0]) != 1 || len(report.Traces[2]) != 1 {
		t.Fatalf("expected one trace entry per healthy example, got %d/%d",
			len(report.Traces[0]), len(report.Traces[2]))
	}
	if report.Traces[0][0].Inputs["x"] != "a" || report.Traces[2][0].Inputs["x"] != "c" {
		t.Errorf("trace scopes leaked across examples: %v / %v", report.Traces[0], report.Traces[2])
	}
}

func TestEvaluator_MetricScoresEveryExample(t *testing.T) {
	prog := loadTestProgram(t, echoProgram)
	metric := loadTestMetric(t, "function metric_fn(example, prediction) { return 0.8; }")

	ev := &Evaluator{Program: prog, Metric: metric}
	report := ev.Run(context.Background(), []map[string]any{{"x": "a"}, {"x": "b"}})

	for i, res := range report.Results {
		if res.Score != 0.8 {
			t.Errorf("example %d: expected score 0.8, got %v", i, res.Score)
		}
		if res.Feedback != nil {
			t.Errorf("example %d: expected absent feedback for a bare number", i)
		}
	}
	if report.AverageScore != 0.8 {
		t.Errorf("expected average 0.8, got %v", report.AverageScore)
	}
}

func TestEvaluator_StructuredMetricPropagates(t *testing.T) {
	prog := loadTestProgram(t, echoProgram)
	metric := loadTestMetric(t, `function metric_fn(example, prediction) { return {score: 0.5, feedback: "ok"}; }`)

	ev := &Evaluator{Program: prog, Metric: metric}
	report := ev.Run(context.Background(), []map[string]any{{"x": "a"}})

	res := report.Results[0]
	if res.Score != 0.5 {
		t.Errorf("expected score 0.5, got %v", res.Score)
	}
	if res.Feedback == nil || *res.Feedback != "ok" {
		t.Errorf("expected feedback ok, got %v", res.Feedback)
	}
}

func TestEvaluator_ScoringFailureWipesOutputs(t *testing.T) {
	prog := loadTestProgram(t, echoProgram)
	metric := loadTestMetric(t, `function metric_fn(example, prediction) { throw new Error("bad metric"); }`)

	ev := &Evaluator{Program: prog, Metric: metric}
	report := ev.Run(context.Background(), []map[string]any{{"x": "a"}})

	res := report.Results[0]
	if res.Error == nil || !strings.Contains(*res.Error, "bad metric") {
		t.Fatalf("expected scoring failure, got: %+v", res)
	}
	if len(res.Outputs) != 0 {
		t.Errorf("expected outputs wiped on scoring failure, got: %v", res.Outputs)
	}
	if len(report.Traces[0]) != 0 {
		t.Errorf("expected empty trace on scoring failure, got: %v", report.Traces[0])
	}
}

func TestEvaluator_InputsSubMapping(t *testing.T) {
	prog := loadTestProgram(t, `
var program = {
	setLM: function(lm) {},
	forward: function(inputs) { return {y: inputs.x, sawLabel: inputs.label !== undefined}; },
};
`)
	// the metric sees the same input view the program was invoked with
	metric := loadTestMetric(t, `function metric_fn(example, prediction) { return example.label === undefined && example.x === "a" ? 1 : 0; }`)

	ev := &Evaluator{Program: prog, Metric: metric}
	report := ev.Run(context.Background(), []map[string]any{
		{"inputs": map[string]any{"x": "a"}, "label": "gold"},
	})

	res := report.Results[0]
	if res.Error != nil {
		t.Fatalf("unexpected error: %s", *res.Error)
	}
	if res.Outputs["y"] != "a" {
		t.Errorf("expected program to receive the inputs sub-mapping, got: %v", res.Outputs)
	}
	if res.Outputs["sawLabel"] != false {
		t.Errorf("expected the label to stay out of the input view, got: %v", res.Outputs)
	}
	if res.Score != 1 {
		t.Errorf("expected metric to see the input view, got score %v", res.Score)
	}
}

func TestEvaluator_MalformedInputsField(t *testing.T) {
	prog := loadTestProgram(t, echoProgram)
	ev := &Evaluator{Program: prog}
	report := ev.Run(context.Background(), []map[string]any{
		{"inputs": "not a mapping"},
	})

	res := report.Results[0]
	if res.Error == nil || !strings.Contains(*res.Error, "not a mapping") {
		t.Errorf("expected input construction failure, got: %+v", res)
	}
}

func TestEvaluator_NoExamples(t *testing.T) {
	prog := loadTestProgram(t, echoProgram)
	ev := &Evaluator{Program: prog}
	report := ev.Run(context.Background(), []map[string]any{})

	if !report.Success {
		t.Error("expected success with no examples")
	}
	if report.AverageScore != 0 {
		t.Errorf("expected average 0 for an empty batch, got %v", report.AverageScore)
	}
	if report.Results == nil || report.Scores == nil || report.Traces == nil {
		t.Error("expected empty sequences, not nil")
	}
}

func TestMean(t *testing.T) {
	if got := mean(nil); got != 0 {
		t.Errorf("mean of nothing should be 0, got %v", got)
	}
	if got := mean([]float64{0.5, 1.0, 0}); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}
