// Package keyword implements Keyword⟨T⟩, the two-arm literal-or-symbol
// value used throughout stage configs. A config containing a Symbol is
// unemplaced; Emplace resolves it using a per-stage emplacement map.
package keyword

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"flowline/pkg/errs"
)

// Keyword is either a literal Value or an unresolved Symbol name. Equality
// is defined on the discriminant plus payload: a Value and a Symbol that
// happen to share text are distinct.
type Keyword[T any] struct {
	hasValue bool
	value    T
	symbol   string // non-empty iff this Keyword originated as "$name"
}

// Of builds an already-resolved Keyword.
func Of[T any](v T) Keyword[T] { return Keyword[T]{hasValue: true, value: v} }

// Sym builds an unemplaced Keyword referencing the given symbol name.
func Sym[T any](name string) Keyword[T] { return Keyword[T]{symbol: name} }

// IsSymbol reports whether the Keyword still has unresolved symbol text.
// Note a Value obtained via emplacement keeps its symbol name for
// traceability, so IsSymbol reports on the *text*, not readiness; use
// HasValue to check resolution.
func (k Keyword[T]) IsSymbol() bool { return k.symbol != "" }

// HasValue reports whether a concrete value is available.
func (k Keyword[T]) HasValue() bool { return k.hasValue }

// Value returns the resolved value and whether one is present.
func (k Keyword[T]) Value() (T, bool) { return k.value, k.hasValue }

// SymbolName returns the original "$name" text, if any (may coexist with
// a resolved value after emplacement).
func (k Keyword[T]) SymbolName() (string, bool) { return k.symbol, k.symbol != "" }

// MustValue panics if no value is present; only ever call after Validate.
func (k Keyword[T]) MustValue() T {
	if !k.hasValue {
		panic("keyword: MustValue called on an unresolved symbol")
	}
	return k.value
}

// Emplace resolves a Symbol Keyword against ctx, returning
// SymbolMissingValue if the name is absent. Already-resolved Keywords are
// left untouched (idempotent).
func (k Keyword[T]) Emplace(ctx map[string]any) (Keyword[T], error) {
	if k.hasValue {
		return k, nil
	}
	raw, ok := ctx[k.symbol]
	if !ok {
		return k, errs.SymbolMissingValue(k.symbol)
	}
	v, ok := raw.(T)
	if !ok {
		return k, errs.Config("emplace", "symbol %q bound to %T, want %T", k.symbol, raw, v)
	}
	k.value = v
	k.hasValue = true
	return k, nil
}

// Validate rejects a Keyword that is still an unresolved Symbol, matching
// the "post-emplacement validation rejects any remaining Symbol" rule.
func (k Keyword[T]) Validate() error {
	if !k.hasValue {
		return errs.Config("emplace", "unsubstituted symbol %q", k.symbol)
	}
	return nil
}

// UnmarshalYAML discriminates on a leading "$": any other scalar string
// (or non-string node) becomes a literal Value decoded into T.
func (k *Keyword[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && strings.HasPrefix(node.Value, "$") && len(node.Value) > 1 {
		k.symbol = node.Value[1:]
		k.hasValue = false
		return nil
	}
	var v T
	if err := node.Decode(&v); err != nil {
		return fmt.Errorf("keyword: decode literal: %w", err)
	}
	k.value = v
	k.hasValue = true
	k.symbol = ""
	return nil
}

// MarshalYAML round-trips a Symbol back to its "$name" scalar form and a
// Value back to its plain literal encoding.
func (k Keyword[T]) MarshalYAML() (any, error) {
	if !k.hasValue {
		return "$" + k.symbol, nil
	}
	return k.value, nil
}
