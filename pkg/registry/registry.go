// Package registry implements the Results Registry: the name-indexed
// container of Pipeline Frames, created once per pipeline and never
// extended after the first stage runs.
package registry

import (
	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/pipelineframe"
)

// Registry is the ordered, name-indexed map of Pipeline Frames.
type Registry struct {
	order []string
	cells map[string]*pipelineframe.PipelineFrame
}

// WithResults constructs a Registry pre-populated with one empty Pipeline
// Frame per name, each with the given channel buffer size.
func WithResults(names []string, bufferSize int) *Registry {
	r := &Registry{cells: make(map[string]*pipelineframe.PipelineFrame, len(names))}
	for _, n := range names {
		if _, exists := r.cells[n]; exists {
			continue
		}
		r.order = append(r.order, n)
		r.cells[n] = pipelineframe.New(n, bufferSize)
	}
	return r
}

// Names returns every name declared in the registry, in insertion order.
func (r *Registry) Names() []string { return append([]string(nil), r.order...) }

func (r *Registry) cell(name string) (*pipelineframe.PipelineFrame, error) {
	c, ok := r.cells[name]
	if !ok {
		return nil, errs.Component("registry", "unknown frame %q", name)
	}
	return c, nil
}

// Insert writes a frame without broadcasting (initial seeding).
func (r *Registry) Insert(name string, f frame.Frame) error {
	c, err := r.cell(name)
	if err != nil {
		return err
	}
	c.Seed(f)
	return nil
}

// Extract returns the lazy frame clone for name.
func (r *Registry) Extract(name string) (frame.Frame, error) {
	c, err := r.cell(name)
	if err != nil {
		return frame.Frame{}, err
	}
	return c.Extract(), nil
}

// ExtractClone invokes the cache path for name.
func (r *Registry) ExtractClone(name string) (frame.Frame, error) {
	c, err := r.cell(name)
	if err != nil {
		return frame.Frame{}, err
	}
	return c.ExtractClone()
}

// GetBroadcast returns a blocking broadcast handle for name.
func (r *Registry) GetBroadcast(name, handleName string) (pipelineframe.BroadcastHandle, error) {
	c, err := r.cell(name)
	if err != nil {
		return pipelineframe.BroadcastHandle{}, err
	}
	return c.BroadcastHandle(handleName), nil
}

// GetListener returns a blocking listen handle for name.
func (r *Registry) GetListener(name, handleName string) (pipelineframe.ListenHandle, error) {
	c, err := r.cell(name)
	if err != nil {
		return pipelineframe.ListenHandle{}, err
	}
	return c.ListenHandle(handleName), nil
}

// GetAsyncBroadcast returns a non-blocking overflow-dropping broadcast handle.
func (r *Registry) GetAsyncBroadcast(name, handleName string) (pipelineframe.AsyncBroadcastHandle, error) {
	c, err := r.cell(name)
	if err != nil {
		return pipelineframe.AsyncBroadcastHandle{}, err
	}
	return c.AsyncBroadcastHandle(handleName), nil
}

// GetAsyncListener returns a non-blocking overflow-dropping listen handle.
func (r *Registry) GetAsyncListener(name, handleName string) (pipelineframe.AsyncListenHandle, error) {
	c, err := r.cell(name)
	if err != nil {
		return pipelineframe.AsyncListenHandle{}, err
	}
	return c.AsyncListenHandle(handleName), nil
}

// Close retires every cell's channels, used at pipeline shutdown.
func (r *Registry) Close() {
	for _, c := range r.cells {
		c.Close()
	}
}
