package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/axisenergy/checklist/internal/compiler"
	"github.com/axisenergy/checklist/internal/engine"
	"github.com/axisenergy/checklist/internal/ir"
)

// ErrUnknownProgram is returned for a slug that is not in the catalogue.
var ErrUnknownProgram = errors.New("unknown program")

// Program is a compiled program ready for evaluation.
type Program struct {
	Spec  *ir.ProgramSpec
	Graph *engine.Graph
	Hash  string
}

// Engine returns an engine over the program's graph.
func (p *Program) Engine(opts ...engine.Option) *engine.Engine {
	return engine.New(p.Graph, opts...)
}

// Registry is a concurrency-safe program catalogue. Every program in it has
// a built and validated graph.
type Registry struct {
	mu         sync.RWMutex
	programs   map[string]*Program
	order      []string
	generation uint64

	loads singleflight.Group

	logger     *slog.Logger
	mode       compiler.LoadMode
	settle     time.Duration
	buildLimit int
	onReload   func(slugs []string, err error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithLoadMode sets how compile errors are handled when loading a
// catalogue. The default, LoadModeCollectAll, reports every broken program.
func WithLoadMode(mode compiler.LoadMode) Option {
	return func(r *Registry) {
		r.mode = mode
	}
}

// WithBuildLimit bounds how many program graphs a load builds at once.
// Default: GOMAXPROCS. Values below one keep the default.
func WithBuildLimit(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.buildLimit = n
		}
	}
}

// WithReloadHook registers fn to be called after every reload attempt made
// by Watch, with the new slugs or the error that kept the old catalogue.
func WithReloadHook(fn func(slugs []string, err error)) Option {
	return func(r *Registry) {
		r.onReload = fn
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		programs:   make(map[string]*Program),
		logger:     slog.Default(),
		mode:       compiler.LoadModeCollectAll,
		settle:     defaultDebounce,
		buildLimit: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadDir compiles the CUE package in dir and replaces the catalogue.
// On error the current catalogue is left untouched. Concurrent loads of
// the same dir share one compile.
func (r *Registry) LoadDir(dir string) error {
	_, err, _ := r.loads.Do(dir, func() (any, error) {
		cat, errs := compiler.CompileDir(dir, r.mode)
		if len(errs) > 0 {
			return nil, &LoadError{Source: dir, Errors: errs}
		}
		return nil, r.replace(dir, cat.Programs)
	})
	return err
}

// LoadFS compiles every .cue file in fsys and replaces the catalogue.
// On error the current catalogue is left untouched.
func (r *Registry) LoadFS(fsys fs.FS) error {
	const source = "embedded catalogue"
	cat, errs := compiler.CompileFS(fsys, r.mode)
	if len(errs) > 0 {
		return &LoadError{Source: source, Errors: errs}
	}
	return r.replace(source, cat.Programs)
}

// Register adds one program, replacing any program with the same slug.
// Its graph is built immediately so an invalid program is rejected here.
func (r *Registry) Register(spec *ir.ProgramSpec) error {
	p, err := buildProgram(spec)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.programs[spec.Slug]; !exists {
		r.order = append(r.order, spec.Slug)
	}
	r.programs[spec.Slug] = p
	r.generation++
	return nil
}

// replace builds every spec's graph and swaps the catalogue only when all
// of them build.
func (r *Registry) replace(source string, specs []*ir.ProgramSpec) error {
	order := make([]string, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Slug] {
			return fmt.Errorf("duplicate program slug %q", spec.Slug)
		}
		seen[spec.Slug] = true
		order = append(order, spec.Slug)
	}

	built := make([]*Program, len(specs))
	failed := make([]error, len(specs))
	var g errgroup.Group
	g.SetLimit(r.buildLimit)
	for i, spec := range specs {
		g.Go(func() error {
			built[i], failed[i] = buildProgram(spec)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, err := range failed {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &LoadError{Source: source, Errors: errs}
	}

	next := make(map[string]*Program, len(built))
	for _, p := range built {
		next[p.Spec.Slug] = p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs = next
	r.order = order
	r.generation++

	r.logger.Info("program catalogue loaded", "source", source, "programs", len(order), "generation", r.generation)
	return nil
}

func buildProgram(spec *ir.ProgramSpec) (*Program, error) {
	g, err := engine.BuildGraph(spec)
	if err != nil {
		return nil, err
	}
	return &Program{Spec: spec, Graph: g, Hash: g.Hash()}, nil
}

// Program returns the compiled program for slug.
func (r *Registry) Program(slug string) (*Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProgram, slug)
	}
	return p, nil
}

// Slugs returns the catalogue's program slugs in declaration order.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of programs in the catalogue.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
