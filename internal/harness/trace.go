package harness

import "fmt"

// Recorder accumulates raw sub-invocation records during exactly one
// top-level program call. The evaluation loop creates a fresh Recorder per
// example and passes it into the invocation, so no state survives between
// examples.
type Recorder struct {
	raw [][]any
}

// NewRecorder returns an empty recorder for one invocation scope.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one raw record. Records are kept as loose part lists until
// Drain; parts are (module, inputs, outputs), and anything beyond the third
// part is ignored.
func (r *Recorder) Record(parts ...any) {
	r.raw = append(r.raw, parts)
}

// Drain normalizes the accumulated records into trace entries. Records with
// fewer than three parts are dropped. Input and output values are
// stringified; parts that are not mappings normalize to empty mappings.
// The result is never nil: zero sub-invocations yield an empty slice.
func (r *Recorder) Drain() []TraceEntry {
	entries := make([]TraceEntry, 0, len(r.raw))
	for _, rec := range r.raw {
		if len(rec) < 3 {
			continue
		}
		entries = append(entries, TraceEntry{
			Module:  stringify(rec[0]),
			Inputs:  stringifyMap(rec[1]),
			Outputs: stringifyMap(rec[2]),
		})
	}
	return entries
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func stringifyMap(v any) map[string]string {
	out := make(map[string]string)
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, val := range m {
		out[k] = stringify(val)
	}
	return out
}
