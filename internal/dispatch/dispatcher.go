// ABOUTME: Dispatcher resolves, validates and executes tool invocations
// ABOUTME: Scopes a store session per call and converts every outcome into a Result

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/uavcrew/compliance-gateway/internal/auth"
	"github.com/uavcrew/compliance-gateway/internal/packs"
	"github.com/uavcrew/compliance-gateway/internal/store"
)

const instrumentationName = "github.com/uavcrew/compliance-gateway/internal/dispatch"

// SpanName is the name of the span wrapping each invocation.
const SpanName = "tools.invoke"

// Outcomes recorded on spans and metrics.
const (
	OutcomeOK            = "ok"
	OutcomeNotFound      = "not_found"
	OutcomeUnknownTool   = "unknown_tool"
	OutcomeInvalidParams = "invalid_params"
	OutcomeError         = "error"
	OutcomePanic         = "panic"
)

var (
	ErrNoRegistry = errors.New("dispatcher requires a registry")
	ErrNoStore    = errors.New("dispatcher requires a store")
)

// Config contains the collaborators of a Dispatcher. Tracer and meter
// providers default to no-op implementations.
type Config struct {
	Registry       *packs.Registry
	Store          store.Store
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Dispatcher executes tool invocations. It holds no per-call state and is
// safe for concurrent use.
type Dispatcher struct {
	registry *packs.Registry
	store    store.Store
	logger   *slog.Logger
	tracer   trace.Tracer
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, ErrNoRegistry
	}
	if cfg.Store == nil {
		return nil, ErrNoStore
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}

	meter := mp.Meter(instrumentationName)
	calls, err := meter.Int64Counter("tools.invocations",
		metric.WithDescription("Tool invocations by tool and outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating invocation counter: %w", err)
	}
	duration, err := meter.Float64Histogram("tools.invocation.duration",
		metric.WithDescription("Tool invocation latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &Dispatcher{
		registry: cfg.Registry,
		store:    cfg.Store,
		logger:   logger.With("component", "dispatch"),
		tracer:   tp.Tracer(instrumentationName),
		calls:    calls,
		duration: duration,
	}, nil
}

// Registry returns the registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *packs.Registry {
	return d.registry
}

// Invoke runs the tool named by method with params. The caller's identity,
// if any, is read from ctx via auth.FromContext. Invoke never returns a
// partial result: either the handler's complete payload or a Failure.
func (d *Dispatcher) Invoke(ctx context.Context, method string, params map[string]any) Result {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("tool.name", method)),
	)
	defer span.End()

	result, outcome := d.invoke(ctx, method, params)

	span.SetAttributes(attribute.String("tool.outcome", outcome))
	if f := result.Failure(); f != nil {
		span.SetStatus(codes.Error, f.Message)
	}

	toolAttr := method
	if outcome == OutcomeUnknownTool {
		toolAttr = "unknown"
	}
	attrs := metric.WithAttributes(
		attribute.String("tool.name", toolAttr),
		attribute.String("tool.outcome", outcome),
	)
	d.calls.Add(ctx, 1, attrs)
	d.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)

	return result
}

func (d *Dispatcher) invoke(ctx context.Context, method string, params map[string]any) (Result, string) {
	principal := ""
	if ac := auth.FromContext(ctx); ac != nil {
		principal = ac.PrincipalID
	}

	tool, err := d.registry.Resolve(method)
	if err != nil {
		d.logger.Debug("tool not found in registry", "tool_name", method, "principal", principal)
		return Fail(CodeMethodNotFound, "Method not found: "+method), OutcomeUnknownTool
	}

	if params == nil {
		params = map[string]any{}
	}
	if err := packs.Validate(tool, params); err != nil {
		d.logger.Debug("invalid params", "tool_name", method, "error", err)
		return Fail(CodeInvalidParams, err.Error()), OutcomeInvalidParams
	}

	sess, err := d.store.Acquire(ctx)
	if err != nil {
		return d.internal(method, principal, err), OutcomeError
	}
	defer sess.Release()

	d.logger.Info("→ dispatching to builtin",
		"tool_name", method,
		"pack_id", tool.PackID,
		"principal", principal,
	)

	payload, err := call(ctx, tool, sess, params)
	if err != nil {
		if nf, ok := packs.IsNotFound(err); ok {
			d.logger.Info("← builtin responded", "tool_name", method, "outcome", OutcomeNotFound)
			return Success(notFoundPayload(nf)), OutcomeNotFound
		}
		var ve *packs.ValidationError
		if errors.As(err, &ve) {
			d.logger.Debug("invalid params", "tool_name", method, "error", err)
			return Fail(CodeInvalidParams, ve.Error()), OutcomeInvalidParams
		}
		var pe *panicError
		if errors.As(err, &pe) {
			return d.internal(method, principal, err, "stack", string(pe.stack)), OutcomePanic
		}
		return d.internal(method, principal, err), OutcomeError
	}

	d.logger.Info("← builtin responded", "tool_name", method, "outcome", OutcomeOK)
	return Success(payload), OutcomeOK
}

// internal logs cause under a fresh correlation id and returns a Failure
// that carries only that id.
func (d *Dispatcher) internal(method, principal string, cause error, extra ...any) Result {
	correlationID := uuid.NewString()
	args := append([]any{
		"correlation_id", correlationID,
		"tool_name", method,
		"principal", principal,
		"error", cause,
	}, extra...)
	d.logger.Error("tool invocation failed", args...)

	r := Fail(CodeInternalError, fmt.Sprintf("Internal error (correlation id: %s)", correlationID))
	r.failure.CorrelationID = correlationID
	return r
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.value)
}

// call runs the handler, converting a panic into a *panicError.
func call(ctx context.Context, tool *packs.Tool, sess store.Session, params map[string]any) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return tool.Handler(ctx, sess, packs.Args(params))
}

func notFoundPayload(nf *packs.NotFoundError) map[string]any {
	payload := make(map[string]any, len(nf.Extra)+1)
	for k, v := range nf.Extra {
		payload[k] = v
	}
	payload["error"] = nf.Message
	return payload
}
