package urlsync

import (
	"context"

	"explore-state-be/internal/pkg/logger"
	"explore-state-be/pkg/explore/orchestrator"
)

// Engine couples a Location with an orchestrator in both directions.
type Engine struct {
	location Location
	inbound  *Inbound
	outbound *Outbound
	logger   logger.ILogger

	ctx        context.Context
	stopListen func()
}

func NewEngine(orch *orchestrator.Orchestrator, location Location, opts OutboundOptions) *Engine {
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &Engine{
		location: location,
		inbound:  NewInbound(orch, opts.Logger),
		outbound: NewOutbound(orch, location, opts),
		logger:   opts.Logger,
	}
}

// Start applies the current location and follows later navigation. ctx
// bounds the lookups made while applying; it is detached from
// cancellation so that streams started by navigation outlive the call.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx = context.WithoutCancel(ctx)
	err := e.apply(e.ctx, e.location.Current())
	e.stopListen = e.location.Listen(func(rawQuery string) {
		if err := e.apply(e.ctx, rawQuery); err != nil {
			e.logger.Warn(inboundModule, "Navigation applied with errors", map[string]interface{}{"error": err.Error()})
		}
	})
	return err
}

// Navigate records rawQuery as a new location entry and applies it.
func (e *Engine) Navigate(ctx context.Context, rawQuery string) error {
	e.location.Push(rawQuery)
	return e.apply(context.WithoutCancel(ctx), rawQuery)
}

func (e *Engine) apply(ctx context.Context, rawQuery string) error {
	// Corrections written in response to navigation amend the entry the
	// user navigated to.
	e.outbound.ReplaceNext()
	err := e.inbound.Sync(ctx, rawQuery)
	e.outbound.SettleNavigation()
	return err
}

// Flush writes pending state immediately.
func (e *Engine) Flush() {
	e.outbound.Flush()
}

func (e *Engine) Stop() {
	if e.stopListen != nil {
		e.stopListen()
	}
	e.outbound.Stop()
}
