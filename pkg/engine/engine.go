package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cascadehq/cascade/internal/expressions"
	"github.com/cascadehq/cascade/internal/logging"
	"github.com/cascadehq/cascade/internal/validation"
	"github.com/cascadehq/cascade/pkg/flow"
)

// DefaultPoolSize is the default worker pool concurrency.
const DefaultPoolSize = 10

// Config holds engine configuration.
type Config struct {
	// PoolSize caps concurrent handler goroutines across all runs.
	PoolSize int
	// StrictOutcomes makes a router returning a token outside its
	// declared outcome set fail the run instead of firing silently.
	StrictOutcomes bool
	// MethodTimeout bounds each handler invocation. Zero means no limit.
	MethodTimeout time.Duration
	// Logger receives structured run logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Sink receives the run event stream. Nil disables event emission.
	Sink Sink
}

// Engine executes runs of one flow graph. Safe for concurrent kickoffs;
// every run gets isolated state while sharing the immutable graph, the
// worker pool and the compiled guard programs.
type Engine struct {
	graph  *flow.Graph
	cfg    Config
	pool   *WorkerPool
	logger *slog.Logger
	sink   Sink

	cel       *expressions.CELEngine
	expr      *expressions.ExprEngine
	jq        *expressions.GoJQEngine
	validator *validation.InputValidator
}

// New builds an Engine for the graph. Guard expressions and the input
// schema are compiled eagerly so definition mistakes surface here, not
// mid-run.
func New(graph *flow.Graph, cfg Config) (*Engine, error) {
	if graph == nil {
		return nil, flow.NewError(flow.ErrCodeValidation, "graph is nil")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, flow.NewError(flow.ErrCodeValidation, "create CEL engine").WithCause(err)
	}

	e := &Engine{
		graph:     graph,
		cfg:       cfg,
		pool:      NewWorkerPool(cfg.PoolSize),
		logger:    logger,
		sink:      cfg.Sink,
		cel:       celEngine,
		expr:      expressions.NewExprEngine(),
		jq:        expressions.NewGoJQEngine(),
		validator: validation.NewInputValidator(),
	}

	for _, m := range graph.Methods() {
		if m.Guard == nil {
			continue
		}
		switch m.Guard.Engine {
		case "cel":
			if err := e.cel.Compile(m.Guard.Expr); err != nil {
				return nil, wrapGuardErr(err, m.Name)
			}
		case "expr":
			if err := e.expr.Compile(m.Guard.Expr); err != nil {
				return nil, wrapGuardErr(err, m.Name)
			}
		default:
			return nil, flow.NewErrorf(flow.ErrCodeDefinition,
				"unknown guard engine %q", m.Guard.Engine).WithMethod(m.Name)
		}
	}

	if err := e.validator.Compile(graph.InputSchema()); err != nil {
		return nil, err
	}

	return e, nil
}

func wrapGuardErr(err error, method string) error {
	if fe, ok := err.(*flow.Error); ok {
		return fe.WithMethod(method)
	}
	return flow.NewError(flow.ErrCodeDefinition, err.Error()).WithMethod(method)
}

// Graph returns the graph this engine executes.
func (e *Engine) Graph() *flow.Graph {
	return e.graph
}

// Kickoff starts a run and blocks until it finishes. Inputs are checked
// against the graph's input schema first; a validation failure returns an
// error without starting the run. Run-level failures are reported in the
// result, not as a returned error.
func (e *Engine) Kickoff(ctx context.Context, inputs map[string]any) (*RunResult, error) {
	if err := e.validator.Validate(inputs, e.graph.InputSchema()); err != nil {
		return nil, err
	}

	r := newRuntime(e, inputs)
	ctx = logging.WithFlow(logging.WithRunID(ctx, r.id), e.graph.Name())
	return r.execute(ctx), nil
}

// KickoffAsync starts a run in the background and returns a future.
func (e *Engine) KickoffAsync(ctx context.Context, inputs map[string]any) *AsyncRun {
	ar := &AsyncRun{done: make(chan struct{})}
	go func() {
		defer close(ar.done)
		ar.result, ar.err = e.Kickoff(ctx, inputs)
	}()
	return ar
}

// Shutdown stops the shared worker pool, waiting for in-flight handlers.
func (e *Engine) Shutdown() {
	e.pool.Shutdown()
}

func newRunID() string {
	return uuid.NewString()
}
