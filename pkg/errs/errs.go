// Package errs defines the engine's error taxonomy. Every error kind wraps
// an underlying cause (when one exists) so callers can use errors.Is/As
// across fmt.Errorf("%w") chains instead of matching on string content.
package errs

import "fmt"

// Kind identifies which taxonomy bucket an error belongs to.
type Kind string

const (
	KindComponent           Kind = "component"
	KindConfig              Kind = "config"
	KindTask                Kind = "task"
	KindPipeline            Kind = "pipeline"
	KindConnection          Kind = "connection"
	KindRaw                 Kind = "raw"
	KindSymbolMissingValue  Kind = "symbol_missing_value"
)

// Error is the concrete type behind every sentinel constructor below.
type Error struct {
	Kind    Kind
	Op      string // component identity, e.g. "source.csv" or "registry"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Op != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, errs.SentinelConfig)-style matching: a target
// *Error carrying only a Kind (no Op, no message) matches any *Error of
// that Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Component reports a missing registry entry or unexpected registry shape.
func Component(op, format string, args ...any) error { return newf(KindComponent, op, format, args...) }

func ComponentWrap(op string, cause error, format string, args ...any) error {
	return wrap(KindComponent, op, cause, format, args...)
}

// Config reports invalid YAML shape, unknown dtype, unsubstituted symbols,
// disallowed task_type values, or duplicate stage labels.
func Config(op, format string, args ...any) error { return newf(KindConfig, op, format, args...) }

func ConfigWrap(op string, cause error, format string, args ...any) error {
	return wrap(KindConfig, op, cause, format, args...)
}

// Task reports a configured operator rejecting its own arguments.
func Task(op, format string, args ...any) error { return newf(KindTask, op, format, args...) }

func TaskWrap(op string, cause error, format string, args ...any) error {
	return wrap(KindTask, op, cause, format, args...)
}

// Pipeline reports channel-disconnected, double-set-context, or
// cache-lock-poisoned conditions.
func Pipeline(op, format string, args ...any) error { return newf(KindPipeline, op, format, args...) }

func PipelineWrap(op string, cause error, format string, args ...any) error {
	return wrap(KindPipeline, op, cause, format, args...)
}

// Connection reports exhausted HTTP retries or content-type mismatches.
func Connection(op, format string, args ...any) error { return newf(KindConnection, op, format, args...) }

func ConnectionWrap(op string, cause error, format string, args ...any) error {
	return wrap(KindConnection, op, cause, format, args...)
}

// Raw wraps underlying I/O errors without reclassifying them.
func RawWrap(op string, cause error) error {
	return wrap(KindRaw, op, cause, "i/o error")
}

// SymbolMissingValue reports emplacement failing to supply a Symbol's value.
func SymbolMissingValue(name string) error {
	return newf(KindSymbolMissingValue, "emplace", "no value bound for symbol %q", name)
}

// AggregateConfig folds accumulated per-entry config errors into one
// ConfigError, as required by the "partial success not allowed" parse
// propagation policy.
func AggregateConfig(op string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d error(s)", len(errs))
	agg := &Error{Kind: KindConfig, Op: op, Message: msg}
	for _, e := range errs {
		agg.Message += "; " + e.Error()
	}
	return agg
}

var (
	// SentinelConfig/SentinelComponent/... for errors.Is matching by kind.
	SentinelComponent          = &Error{Kind: KindComponent}
	SentinelConfig             = &Error{Kind: KindConfig}
	SentinelTask               = &Error{Kind: KindTask}
	SentinelPipeline           = &Error{Kind: KindPipeline}
	SentinelConnection         = &Error{Kind: KindConnection}
	SentinelRaw                = &Error{Kind: KindRaw}
	SentinelSymbolMissingValue = &Error{Kind: KindSymbolMissingValue}
)
