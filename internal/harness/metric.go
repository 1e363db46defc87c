package harness

import (
	"fmt"
	"math"
	"strings"

	"github.com/dop251/goja"
)

// Metric is a loaded scoring callable.
type Metric struct {
	vm *goja.Runtime
	fn goja.Callable
}

// LoadMetric compiles source in a fresh runtime and extracts the top-level
// "metric_fn" binding. An empty source, or a source that runs but defines no
// metric_fn, yields a nil Metric without error: the harness degrades to
// unscored evaluation rather than failing the batch. Sources that fail to
// compile or run are load failures like any other.
func LoadMetric(source string) (*Metric, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}
	compiled, err := goja.Compile("metric", source, false)
	if err != nil {
		return nil, loadErrorf(LoadSyntax, "metric source does not compile: %v", err)
	}
	vm := goja.New()
	if _, err := vm.RunProgram(compiled); err != nil {
		le := loadErrorf(LoadInit, "metric source failed to run: %v", err)
		le.Detail = exceptionDetail(err)
		return nil, le
	}
	fn, ok := goja.AssertFunction(vm.Get("metric_fn"))
	if !ok {
		return nil, nil
	}
	return &Metric{vm: vm, fn: fn}, nil
}

// Score invokes the metric with (example, prediction) and normalizes the
// result: a value exposing a score property yields (score, feedback), any
// other value is coerced to a bare numeric score with no feedback.
func (m *Metric) Score(example, prediction map[string]any) (float64, *string, error) {
	res, err := m.fn(goja.Undefined(), m.vm.ToValue(example), m.vm.ToValue(prediction))
	if err != nil {
		return 0, nil, fmt.Errorf("metric invocation failed: %w", err)
	}
	return normalizeMetricResult(res.Export())
}

func normalizeMetricResult(v any) (float64, *string, error) {
	if obj, ok := v.(map[string]any); ok {
		if raw, ok := obj["score"]; ok {
			score, err := toScore(raw)
			if err != nil {
				return 0, nil, err
			}
			var feedback *string
			if fb, ok := obj["feedback"]; ok && fb != nil {
				s := stringify(fb)
				feedback = &s
			}
			return score, feedback, nil
		}
	}
	score, err := toScore(v)
	return score, nil, err
}

// toScore coerces an exported interpreter value to a float64 score. Integral
// JavaScript numbers export as int64; booleans count as 0/1 to match the
// common exact-match metric idiom.
func toScore(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	case bool:
		if n {
			f = 1
		}
	default:
		return 0, fmt.Errorf("metric returned %T, not a numeric score", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("metric returned a non-finite score")
	}
	return f, nil
}
