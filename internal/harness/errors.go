package harness

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// Load failure categories. All of them abort the request before the
// evaluation loop runs and map to the Failure envelope with exit code 0.
const (
	LoadSyntax       = "syntax"
	LoadInit         = "init"
	LoadMissingEntry = "missing_entry_point"
	LoadWrongType    = "wrong_type"
	LoadLMConfig     = "lm_config"
)

// LoadError is a load-level failure: the request was understood but the
// program, metric, or language-model binding could not be prepared.
type LoadError struct {
	Kind    string
	Message string

	// Detail carries the interpreter stack trace when one is available.
	Detail string
}

func (e *LoadError) Error() string { return e.Message }

func loadErrorf(kind, format string, args ...any) *LoadError {
	return &LoadError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// exceptionDetail extracts the JavaScript stack trace from an interpreter
// error, if the error carries one.
func exceptionDetail(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.String()
	}
	return ""
}

// NewFailure wraps an error into the top-level failure envelope.
func NewFailure(err error) *Failure {
	f := &Failure{Error: err.Error()}
	var le *LoadError
	if errors.As(err, &le) {
		f.Traceback = le.Detail
	}
	return f
}
