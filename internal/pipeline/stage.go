package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/sidereal-data/reduction.report/internal/domain"
	"github.com/sidereal-data/reduction.report/internal/engine"
	"github.com/sidereal-data/reduction.report/internal/timeutil"
)

// Stage is one pipeline step. Implementations build toolkit jobs from the
// Context and return a Result carrying the mutations to fold back in; during
// fan-out they must treat the Context as read-only, since per-dataset
// invocations run concurrently.
type Stage interface {
	// Name is the recipe name of the stage.
	Name() string

	// PerMS reports whether the stage runs once per measurement set
	// (fanned out by the harness) or once over the whole run.
	PerMS() bool

	// Run executes the stage. ms is nil for whole-run stages.
	Run(ctx context.Context, env *Env, ms *domain.MeasurementSet) (*Result, error)
}

// Env is the execution environment handed to a stage invocation.
type Env struct {
	Engine  engine.Engine
	Context *Context
	Clock   timeutil.Clock

	// Params are the stage parameters from the recipe.
	Params map[string]any
}

// StringParam returns a string parameter, or def when absent.
func (e *Env) StringParam(key, def string) string {
	v, ok := e.Params[key]
	if !ok {
		return def
	}
	return fmt.Sprintf("%v", v)
}

// BoolParam returns a boolean parameter, or def when absent or unparseable.
func (e *Env) BoolParam(key string, def bool) bool {
	v, ok := e.Params[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// FloatParam returns a numeric parameter, or def when absent or unparseable.
func (e *Env) FloatParam(key string, def float64) float64 {
	v, ok := e.Params[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// Registry resolves recipe stage names to implementations.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
}

// NewRegistry creates an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds a stage. Registering a duplicate name is a programming
// error and panics at startup rather than shadowing silently.
func (r *Registry) Register(s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.stages[s.Name()]; dup {
		panic(fmt.Sprintf("stage %q registered twice", s.Name()))
	}
	r.stages[s.Name()] = s
}

// Lookup resolves a stage by its recipe name.
func (r *Registry) Lookup(name string) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	if !ok {
		return nil, fmt.Errorf("unknown stage %q", name)
	}
	return s, nil
}

// Names returns the registered stage names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.stages))
	for n := range r.stages {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
