// Package sink implements the Sink Group: a labelled set of adapters
// that all consume the same input frame and write it externally,
// honouring ctx.IsExecutingSink()'s dry-run contract.
package sink

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"flowline/pkg/frame"
)

// Sink is the common per-adapter contract every Sink Group member
// implements: Write persists an eager frame's table.
type Sink interface {
	Label() string
	Write(ctx context.Context, t frame.Table) error
}

// withTimestampSuffix builds a make_next target path/name by inserting a
// timestamp before the final extension (or appending it, for extension-less
// names like table/collection/index identifiers).
func withTimestampSuffix(base string, ext string) string {
	ts := time.Now().UTC().Format("20060102T150405")
	if ext == "" {
		return fmt.Sprintf("%s_%s", base, ts)
	}
	return fmt.Sprintf("%s_%s%s", base, ts, ext)
}

// randomSuffix appends a short random hex tag, used by make_next when
// the timestamped target already exists, to avoid a collision.
func randomSuffix(name string) string {
	return fmt.Sprintf("%s_%04x", name, rand.Intn(1<<16))
}
