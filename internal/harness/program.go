package harness

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja"
)

// Program is a loaded executable module: program source compiled into its
// own goja runtime, with a validated "program" entry point and a language
// model already attached via setLM.
//
// A Program is not safe for concurrent invocation; the evaluation loop is
// strictly sequential.
type Program struct {
	vm      *goja.Runtime
	self    goja.Value
	forward goja.Callable

	// Scope of the currently running invocation. Set by Invoke for the
	// duration of one call so that host functions (lm.complete, trace)
	// attribute their records to the right example.
	ctx context.Context
	rec *Recorder
}

// LoadProgram compiles source in a fresh, isolated runtime, materializes its
// top-level bindings, validates the "program" entry point, and attaches lm
// to it. Program print/console.log output is written to output, which may be
// nil to discard it.
func LoadProgram(source string, lm Binding, output io.Writer) (*Program, error) {
	compiled, err := goja.Compile("program", source, false)
	if err != nil {
		return nil, loadErrorf(LoadSyntax, "program source does not compile: %v", err)
	}

	p := &Program{vm: goja.New()}
	lmObj, err := p.setupEnvironment(lm, output)
	if err != nil {
		return nil, loadErrorf(LoadInit, "setting up program environment: %v", err)
	}

	if _, err := p.vm.RunProgram(compiled); err != nil {
		le := loadErrorf(LoadInit, "program source failed to run: %v", err)
		le.Detail = exceptionDetail(err)
		return nil, le
	}

	val := p.vm.Get("program")
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, loadErrorf(LoadMissingEntry, "No 'program' object defined in code")
	}

	obj, ok := val.(*goja.Object)
	if !ok {
		return nil, wrongTypeError(val)
	}
	forward, ok := goja.AssertFunction(obj.Get("forward"))
	if !ok {
		return nil, wrongTypeError(val)
	}
	setLM, ok := goja.AssertFunction(obj.Get("setLM"))
	if !ok {
		return nil, wrongTypeError(val)
	}
	p.self = val
	p.forward = forward

	if _, err := setLM(val, lmObj); err != nil {
		le := loadErrorf(LoadLMConfig, "binding language model to program: %v", err)
		le.Detail = exceptionDetail(err)
		return nil, le
	}
	return p, nil
}

// Invoke runs the program's forward against one input mapping under the
// given trace recorder. Any failure, including a JavaScript throw or an
// interpreter panic, comes back as an error; the Program stays usable for
// the next example.
func (p *Program) Invoke(ctx context.Context, rec *Recorder, inputs map[string]any) (outputs map[string]any, err error) {
	p.ctx = ctx
	p.rec = rec
	defer func() {
		p.ctx = nil
		p.rec = nil
		if r := recover(); r != nil {
			outputs = nil
			err = fmt.Errorf("program invocation panicked: %v", r)
		}
	}()

	res, err := p.forward(p.self, p.vm.ToValue(inputs))
	if err != nil {
		return nil, fmt.Errorf("program invocation failed: %w", err)
	}
	exported := res.Export()
	m, ok := exported.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("program returned %s, not an output mapping", typeName(res))
	}
	return m, nil
}

// setupEnvironment installs the host bindings available to program code:
// print/console.log, the ambient trace() recording function, and the
// language-model object handed to setLM. Returns the lm object.
func (p *Program) setupEnvironment(lm Binding, output io.Writer) (goja.Value, error) {
	printFunc := func(call goja.FunctionCall) goja.Value {
		if output != nil {
			args := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.String()
			}
			fmt.Fprintln(output, strings.Join(args, " "))
		}
		return goja.Undefined()
	}
	if err := p.vm.Set("print", printFunc); err != nil {
		return nil, fmt.Errorf("failed to set print: %w", err)
	}
	console := p.vm.NewObject()
	if err := console.Set("log", printFunc); err != nil {
		return nil, fmt.Errorf("failed to set console.log: %w", err)
	}
	if err := p.vm.Set("console", console); err != nil {
		return nil, fmt.Errorf("failed to set console: %w", err)
	}

	// trace(module, inputs, outputs) appends one raw record to the active
	// recorder. Calls made outside an invocation scope are dropped; calls
	// with fewer than three arguments are dropped at normalization.
	traceFunc := func(call goja.FunctionCall) goja.Value {
		if p.rec != nil {
			parts := make([]any, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.Export()
			}
			p.rec.Record(parts...)
		}
		return goja.Undefined()
	}
	if err := p.vm.Set("trace", traceFunc); err != nil {
		return nil, fmt.Errorf("failed to set trace: %w", err)
	}

	lmObj := p.vm.NewObject()
	if err := lmObj.Set("model", lm.Model()); err != nil {
		return nil, fmt.Errorf("failed to set lm.model: %w", err)
	}
	completeFunc := func(call goja.FunctionCall) goja.Value {
		prompt := call.Argument(0).String()
		ctx := p.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		completion, err := lm.Complete(ctx, prompt)
		if err != nil {
			panic(p.vm.NewGoError(err))
		}
		if p.rec != nil {
			p.rec.Record(
				fmt.Sprintf("LM(%s)", lm.Model()),
				map[string]any{"prompt": prompt},
				map[string]any{"completion": completion},
			)
		}
		return p.vm.ToValue(completion)
	}
	if err := lmObj.Set("complete", completeFunc); err != nil {
		return nil, fmt.Errorf("failed to set lm.complete: %w", err)
	}
	return lmObj, nil
}

func wrongTypeError(val goja.Value) *LoadError {
	return loadErrorf(LoadWrongType,
		"'program' is %s, not an executable module (need callable forward and setLM)", typeName(val))
}

func typeName(val goja.Value) string {
	if val == nil {
		return "nil"
	}
	if t := val.ExportType(); t != nil {
		return t.String()
	}
	return val.String()
}
