package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
	bridgeerrors "github.com/jrsteele09/datum-mcp-bridge/internal/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxOutputChars bounds the text handed back to the calling agent.
const DefaultMaxOutputChars = 100000

// Execution statuses reported to the observer.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Profile installs the bindings one execution is allowed to see and returns
// the capability object, which is also the caller function's only argument.
// A profile is built per call and never shared between executions.
type Profile interface {
	Name() string
	Bind(ctx context.Context, vm *goja.Runtime) (goja.Value, error)
}

// ExecutionError is a failure raised by caller code: a throw, a rejection,
// a syntax error or an interrupted run.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return e.Message
}

// Outcome is the non-throwing result of Run. Text is set when OK, Error otherwise.
type Outcome struct {
	OK    bool
	Text  string
	Error string
}

// Executor evaluates caller-supplied arrow functions in a fresh runtime.
type Executor struct {
	timeout        time.Duration
	maxOutputChars int
	observe        func(profile, status string, elapsed time.Duration)
	tracer         trace.Tracer
}

type ExecutorOption func(*Executor)

// WithTimeout bounds each execution. Zero leaves executions unbounded.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = timeout
	}
}

func WithMaxOutputChars(n int) ExecutorOption {
	return func(e *Executor) {
		e.maxOutputChars = n
	}
}

func WithObserver(observe func(profile, status string, elapsed time.Duration)) ExecutorOption {
	return func(e *Executor) {
		e.observe = observe
	}
}

// WithTracer records a span per execution.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

func NewExecutor(options ...ExecutorOption) *Executor {
	e := &Executor{
		maxOutputChars: DefaultMaxOutputChars,
		observe:        func(string, string, time.Duration) {},
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Run executes code and never fails: errors come back in the Outcome.
// The text is truncated to the configured limit.
func (e *Executor) Run(ctx context.Context, code string, profile Profile) Outcome {
	text, err := e.Execute(ctx, code, profile)
	if err != nil {
		return Outcome{Error: err.Error()}
	}
	return Outcome{OK: true, Text: Truncate(text, e.maxOutputChars)}
}

// Execute evaluates code to a function and calls it with the profile's
// capability in a runtime holding only the profile's bindings. The settled
// value is rendered as text: strings as is, undefined as "undefined" and
// anything else as indented JSON.
func (e *Executor) Execute(ctx context.Context, code string, profile Profile) (text string, err error) {
	started := time.Now()
	defer func() {
		status := StatusOK
		if err != nil {
			status = StatusError
		}
		e.observe(profile.Name(), status, time.Since(started))
	}()

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "sandbox.execute",
			trace.WithAttributes(attribute.String("sandbox.profile", profile.Name())))
		defer func() {
			endSpan(span, err)
		}()
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	vm := goja.New()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("profile", profile.Name()).Msg("sandbox execution panicked")
			text, err = "", &ExecutionError{Message: fmt.Sprintf("execution aborted: %v", r)}
		}
	}()

	capability, err := profile.Bind(ctx, vm)
	if err != nil {
		return "", err
	}

	compiled, err := vm.RunString("(" + code + "\n)")
	if err != nil {
		return "", toExecutionError(vm, err)
	}
	fn, ok := goja.AssertFunction(compiled)
	if !ok {
		return "", &ExecutionError{Message: "code must be a function expression"}
	}
	result, err := fn(goja.Undefined(), capability)
	if err != nil {
		return "", toExecutionError(vm, err)
	}

	if promise, ok := result.Export().(*goja.Promise); ok {
		switch promise.State() {
		case goja.PromiseStateFulfilled:
			result = promise.Result()
		case goja.PromiseStateRejected:
			return "", &ExecutionError{Message: errorMessage(vm, promise.Result())}
		default:
			return "", bridgeerrors.ErrExecutionPending
		}
	}

	return render(vm, result)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func render(vm *goja.Runtime, v goja.Value) (string, error) {
	if v == nil || goja.IsUndefined(v) {
		return "undefined", nil
	}
	if s, ok := v.Export().(string); ok {
		return s, nil
	}

	out, err := jsonStringify(vm, v, vm.ToValue(2))
	if err != nil {
		return "", toExecutionError(vm, err)
	}
	if goja.IsUndefined(out) {
		return "undefined", nil
	}
	return out.String(), nil
}

func jsonStringify(vm *goja.Runtime, args ...goja.Value) (goja.Value, error) {
	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return nil, fmt.Errorf("JSON.stringify unavailable")
	}
	if len(args) > 1 {
		args = append([]goja.Value{args[0], goja.Null()}, args[1:]...)
	}
	return stringify(goja.Undefined(), args...)
}

func jsonParse(vm *goja.Runtime, text string) (goja.Value, error) {
	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return nil, fmt.Errorf("JSON.parse unavailable")
	}
	return parse(goja.Undefined(), vm.ToValue(text))
}

func toExecutionError(vm *goja.Runtime, err error) error {
	switch e := err.(type) {
	case *goja.Exception:
		return &ExecutionError{Message: errorMessage(vm, e.Value())}
	case *goja.InterruptedError:
		return &ExecutionError{Message: fmt.Sprintf("execution interrupted: %v", e.Value())}
	default:
		return &ExecutionError{Message: err.Error()}
	}
}

// errorMessage mirrors how a thrown value reads to a person: the message of
// an Error object, or the string form of anything else.
func errorMessage(vm *goja.Runtime, v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return v.String()
}
