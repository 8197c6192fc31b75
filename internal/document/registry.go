package document

import (
	"fmt"
	"log/slog"
	"sync"
)

// Engine names known to the registry.
const (
	EngineParser   = "parser"
	EngineRenderer = "renderer"
	EngineOCR      = "ocr"
)

// ProbeFunc reports whether an engine can be used in this process, returning
// the reason when it cannot.
type ProbeFunc func() error

// EngineRegistry runs each engine probe at most once and remembers the
// answer. It is safe for concurrent use.
type EngineRegistry struct {
	logger *slog.Logger
	mu     sync.Mutex
	probes map[string]*probe
}

type probe struct {
	once sync.Once
	fn   ProbeFunc
	err  error
}

func NewEngineRegistry(logger *slog.Logger) *EngineRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &EngineRegistry{logger: logger, probes: make(map[string]*probe)}
}

// Register adds or replaces the probe for an engine. A nil probe marks the
// engine as always available.
func (r *EngineRegistry) Register(engine string, fn ProbeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes[engine] = &probe{fn: fn}
}

func (r *EngineRegistry) check(engine string) error {
	r.mu.Lock()
	p, ok := r.probes[engine]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("engine %q not configured", engine)
	}

	p.once.Do(func() {
		if p.fn != nil {
			p.err = p.fn()
		}
		if p.err != nil {
			r.logger.Warn("engine unavailable", "engine", engine, "error", p.err)
		} else {
			r.logger.Debug("engine available", "engine", engine)
		}
	})
	return p.err
}

func (r *EngineRegistry) IsAvailable(engine string) bool {
	return r.check(engine) == nil
}

// Require returns an ErrEngineUnavailable error when the engine cannot be
// used.
func (r *EngineRegistry) Require(engine string) error {
	if err := r.check(engine); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEngineUnavailable, engine, err)
	}
	return nil
}

// Status probes every registered engine and reports availability by name.
func (r *EngineRegistry) Status() map[string]bool {
	r.mu.Lock()
	names := make([]string, 0, len(r.probes))
	for name := range r.probes {
		names = append(names, name)
	}
	r.mu.Unlock()

	status := make(map[string]bool, len(names))
	for _, name := range names {
		status[name] = r.IsAvailable(name)
	}
	return status
}

// BinaryProbe checks that a command is on PATH.
func BinaryProbe(runner Runner, name string) ProbeFunc {
	return func() error {
		if _, err := runner.LookPath(name); err != nil {
			return fmt.Errorf("%s not found: %w", name, err)
		}
		return nil
	}
}
