// Package source implements the Source Group: a labelled set of
// adapters, each producing exactly one named output frame. Every adapter
// here exposes a one-shot fetch(ctx) -> lazy frame contract rather than a
// long-lived streaming one, building a frame.Table instead of streaming
// individual records.
package source

import (
	"context"
	"sort"
	"time"

	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/model"
)

// Source is the common per-adapter contract every Source Group member
// implements: fetch(ctx) returning a lazy frame.
type Source interface {
	Output() string
	Fetch(ctx context.Context) (frame.Frame, error)
}

// RetryPolicy bounds the exponential backoff HTTP adapters use: initial
// 1000ms doubling, default 8 attempts.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// DefaultRetryPolicy is the default retry policy HTTP adapters fall back to.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 8, InitialBackoff: time.Second}
}

// Retry runs fn, doubling the backoff after each failure, up to
// MaxAttempts tries. The last error is wrapped as a ConnectionError.
func Retry(ctx context.Context, op string, policy RetryPolicy, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := policy.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := fn(); err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		return nil
	}
	return errs.ConnectionWrap(op, lastErr, "exhausted %d attempt(s)", attempts)
}

// dedupStrings returns ss with duplicates removed, preserving first-seen
// order (used to dedupe the URL column an HTTP batch source reads).
func dedupStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// inferDType infers a DType from a decoded JSON/CSV scalar value, used
// when a source has no Model-derived schema to project onto. Strings are
// always typed str; date-like strings are not inferred as dates.
func inferDType(v any) model.DType {
	switch v.(type) {
	case bool:
		return model.DType{Kind: model.KindBool}
	case int, int64:
		return model.DType{Kind: model.KindInt64}
	case float64, float32:
		return model.DType{Kind: model.KindDouble}
	case []any:
		return model.DType{Kind: model.KindList}
	case map[string]any:
		return model.DType{Kind: model.KindStruct}
	default:
		return model.DType{Kind: model.KindStr}
	}
}

// schemaFromRows builds a column list and inferred schema from the union
// of keys seen across rows, in first-seen order; keys first seen in the
// same row are ordered by name.
func schemaFromRows(rows []map[string]any) ([]string, map[string]model.DType) {
	var cols []string
	schema := make(map[string]model.DType)
	seen := make(map[string]bool)
	for _, row := range rows {
		var fresh []string
		for k := range row {
			if !seen[k] {
				fresh = append(fresh, k)
			}
		}
		sort.Strings(fresh)
		for _, k := range fresh {
			seen[k] = true
			cols = append(cols, k)
			schema[k] = inferDType(row[k])
		}
	}
	return cols, schema
}
