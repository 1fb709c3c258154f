// Package pipeline runs the queries of a pane: it builds the request, serves
// it from the pane cache or a datasource stream, decorates every emission
// and keeps at most one live main stream and one live stream per
// supplementary query type.
package pipeline

import (
	"context"
	"time"

	"explore-state-be/internal/pkg/logger"
	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/history"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/pane"
	"explore-state-be/pkg/explore/preferences"
	"explore-state-be/pkg/explore/querycache"
	"explore-state-be/pkg/explore/timerange"

	"github.com/coder/quartz"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const moduleName = "PIPELINE"

type Config struct {
	// LiveThrottle bounds how often live emissions reach the pane. A negative
	// value disables throttling.
	LiveThrottle time.Duration
	// MaxDataPoints is used while a pane has not reported its width.
	MaxDataPoints int
	MinInterval   string
}

func (c Config) withDefaults() Config {
	if c.LiveThrottle == 0 {
		c.LiveThrottle = 500 * time.Millisecond
	}
	if c.MaxDataPoints <= 0 {
		c.MaxDataPoints = 1000
	}
	return c
}

type HistoryRecorder interface {
	Record(ctx context.Context, entry history.Entry)
}

type Dependencies struct {
	Registry    datasource.Registry
	Resolver    *timerange.Resolver
	History     HistoryRecorder
	Preferences preferences.Store
	Clock       quartz.Clock
	Logger      logger.ILogger
	Metrics     *Metrics
}

type RunOptions struct {
	PreserveCache bool
}

type Pipeline struct {
	host     Host
	registry datasource.Registry
	resolver *timerange.Resolver
	history  HistoryRecorder
	prefs    preferences.Store
	clock    quartz.Clock
	logger   logger.ILogger
	metrics  *Metrics
	tracer   trace.Tracer
	cfg      Config
}

func New(host Host, deps Dependencies, cfg Config) *Pipeline {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	return &Pipeline{
		host:     host,
		registry: deps.Registry,
		resolver: deps.Resolver,
		history:  deps.History,
		prefs:    deps.Preferences,
		clock:    deps.Clock,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		tracer:   otel.Tracer("explore-state-be/pipeline"),
		cfg:      cfg.withDefaults(),
	}
}

// Run executes the queries of the pane identified by key. Any stream left
// over from a previous run of the pane is released first. Streams outlive
// ctx; only its values are kept.
func (p *Pipeline) Run(ctx context.Context, key string, opts RunOptions) error {
	ctx, span := p.tracer.Start(ctx, "explore.RunQueries", trace.WithAttributes(attribute.String("explore.pane", key)))
	defer span.End()

	s, ok := p.host.Pane(key)
	if !ok {
		return model.ErrPaneNotFound
	}
	if err := s.Runnable(); err != nil {
		return err
	}

	tr, err := p.resolver.Resolve(s.Range.Raw, s.Timezone)
	if err != nil {
		span.RecordError(err)
		return err
	}
	p.host.Dispatch(key, pane.ChangeRange{Range: tr})
	if !opts.PreserveCache {
		p.host.Dispatch(key, pane.ClearCache{})
	}
	if s.QuerySubscription != nil {
		s.QuerySubscription.Unsubscribe()
		p.host.Dispatch(key, pane.CancelQueries{})
	}

	s, _ = p.host.Pane(key)
	queries := targetsFor(s)
	if !model.HasNonEmptyQuery(queries) {
		p.cleanSupplementary(key, s)
		p.host.Dispatch(key, pane.ClearQueryResults{})
		return nil
	}

	req := p.buildRequest(s, queries, tr)
	p.metrics.runs.Inc()

	if cached, hit := querycache.Get(s.Cache, s.AbsoluteRange); hit {
		span.SetAttributes(attribute.Bool("explore.cache_hit", true))
		p.metrics.cacheHits.Inc()

		sub := newSubscription(func() {})
		p.host.Dispatch(key, pane.QueryStarted{Subscription: sub, Request: req})
		p.host.Notify(model.TransitionRunStarted, key)
		first := true
		p.handleResponse(key, sub, req, model.DataQueryResponse{
			State: cached.State,
			Data:  cached.Series,
			Error: cached.Error,
		}, &first)
		p.finish(key, sub)
	} else {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		sub := newSubscription(cancel)
		stream := s.Datasource.Query(runCtx, req)
		if s.IsLive {
			stream = throttle(runCtx, p.clock, stream, p.cfg.LiveThrottle)
		}
		p.host.Dispatch(key, pane.QueryStarted{Subscription: sub, Request: req})
		p.host.Notify(model.TransitionRunStarted, key)

		p.metrics.activeStreams.Inc()
		go p.consume(key, sub, req, stream)
	}

	p.runSupplementary(key, req)

	p.logger.Debug(moduleName, "Query run started", map[string]interface{}{
		"pane":       key,
		"request_id": req.RequestID,
		"targets":    len(req.Targets),
		"live":       req.LiveStreaming,
	})
	return nil
}

// Cancel stops scanning, releases the main stream and every supplementary
// stream of the pane. The last response is kept. Supplementary data that
// already completed is kept as well; providers are always dropped.
func (p *Pipeline) Cancel(key string) error {
	s, ok := p.host.Pane(key)
	if !ok {
		return model.ErrPaneNotFound
	}

	p.host.Dispatch(key, pane.ScanStop{})
	if s.QuerySubscription != nil {
		s.QuerySubscription.Unsubscribe()
	}
	p.host.Dispatch(key, pane.CancelQueries{})

	for _, t := range model.SupplementaryQueryTypes {
		sq := s.SupplementaryQueries[t]
		if sq.DataSubscription != nil {
			sq.DataSubscription.Unsubscribe()
		}
		p.host.Dispatch(key, pane.CleanSupplementaryProvider{Type: t})
		if sq.Data != nil && sq.Data.State == model.LoadingStateDone {
			p.host.Dispatch(key, pane.SetSupplementarySubscription{Type: t})
		} else {
			p.host.Dispatch(key, pane.CleanSupplementaryQuery{Type: t})
		}
	}
	p.metrics.cancellations.Inc()
	return nil
}

// Release drops every stream held by s without touching state. Used when
// the pane goes away.
func Release(s pane.State) {
	if s.QuerySubscription != nil {
		s.QuerySubscription.Unsubscribe()
	}
	for _, sq := range s.SupplementaryQueries {
		if sq.DataSubscription != nil {
			sq.DataSubscription.Unsubscribe()
		}
	}
}

func targetsFor(s pane.State) []model.Query {
	queries := model.CloneQueries(s.Queries)
	if datasource.IsMixed(s.Datasource) {
		return queries
	}
	for i := range queries {
		if queries[i].Datasource == nil {
			queries[i].Datasource = datasource.RefOf(s.Datasource)
		}
	}
	return queries
}

func (p *Pipeline) buildRequest(s pane.State, queries []model.Query, tr model.TimeRange) *model.QueryRequest {
	width := s.ContainerWidth
	if width <= 0 {
		width = p.cfg.MaxDataPoints
	}
	interval, intervalMs := timerange.CalculateInterval(tr.Absolute(), width, p.cfg.MinInterval)

	return &model.QueryRequest{
		RequestID:     pane.RequestID(s.Key),
		App:           model.AppExplore,
		Targets:       queries,
		Range:         tr,
		Timezone:      s.Timezone,
		Interval:      interval,
		IntervalMs:    intervalMs,
		MaxDataPoints: width,
		LiveStreaming: s.IsLive,
		StartTime:     p.clock.Now(),
	}
}

func (p *Pipeline) consume(key string, sub *subscription, req *model.QueryRequest, stream <-chan model.DataQueryResponse) {
	defer p.metrics.activeStreams.Dec()

	first := true
	for resp := range stream {
		p.host.Do(func() {
			p.handleResponse(key, sub, req, resp, &first)
		})
	}
	p.host.Do(func() {
		p.finish(key, sub)
	})
}

// handleResponse applies one emission of sub. Emissions of a stream that is
// no longer the pane's current one are dropped.
func (p *Pipeline) handleResponse(key string, sub *subscription, req *model.QueryRequest, resp model.DataQueryResponse, first *bool) {
	s, ok := p.host.Pane(key)
	if !ok || s.QuerySubscription != pane.Subscription(sub) {
		return
	}
	if resp.Error != nil && resp.Error.Kind == model.ErrorKindCancelled {
		return
	}

	data := Decorate(resp, req)
	p.host.Dispatch(key, pane.QueryStreamUpdated{Response: data})
	p.host.Notify(model.TransitionResponseUpdated, key)
	p.metrics.emissions.WithLabelValues(string(data.State)).Inc()

	if data.Error == nil && *first {
		*first = false
		p.commit(key, s, req)
	}
	if data.State == model.LoadingStateDone {
		p.host.Dispatch(key, pane.AddResultsToCache{})
	}
	if data.Error != nil {
		p.logger.Warn(moduleName, "Query returned an error", map[string]interface{}{
			"pane":  key,
			"kind":  string(data.Error.Kind),
			"error": data.Error.Message,
		})
	}

	if s.Scanning && data.State.IsTerminal() {
		if data.State == model.LoadingStateDone && !data.HasResults() {
			go p.host.Do(func() { p.continueScan(key) })
		} else {
			p.host.Dispatch(key, pane.ScanStop{})
		}
	}
}

// finish runs when the stream of sub completed. A stream that ends without a
// terminal emission leaves the pane Done.
func (p *Pipeline) finish(key string, sub *subscription) {
	defer sub.Unsubscribe()

	s, ok := p.host.Pane(key)
	if !ok || s.QuerySubscription != pane.Subscription(sub) {
		return
	}
	if !s.QueryResponse.State.IsTerminal() {
		resp := s.QueryResponse
		resp.State = model.LoadingStateDone
		p.host.Dispatch(key, pane.QueryStreamUpdated{Response: resp})
		p.host.Dispatch(key, pane.AddResultsToCache{})
		p.host.Notify(model.TransitionResponseUpdated, key)
	}
	p.host.Dispatch(key, pane.QueryFinished{})
}

// commit records the executed queries in history and lets the address bar
// pick up the now successful query set.
func (p *Pipeline) commit(key string, s pane.State, req *model.QueryRequest) {
	if p.history != nil && s.Datasource != nil {
		p.history.Record(context.Background(), history.Entry{
			Datasource:     s.Datasource.Ref(),
			DatasourceName: s.Datasource.Name(),
			Queries:        model.StripKeys(req.Targets),
			Timestamp:      p.clock.Now(),
		})
	}
	p.host.Notify(model.TransitionQueriesCommitted, key)
}

// continueScan moves the range one span back and runs again while the pane
// is still scanning.
func (p *Pipeline) continueScan(key string) {
	s, ok := p.host.Pane(key)
	if !ok || !s.Scanning {
		return
	}
	p.host.Dispatch(key, pane.ChangeRange{Range: timerange.ResolveAbsolute(timerange.Previous(s.AbsoluteRange))})
	p.host.Notify(model.TransitionRangeChanged, key)

	if err := p.Run(context.Background(), key, RunOptions{}); err != nil {
		p.logger.Warn(moduleName, "Scan stopped", map[string]interface{}{"pane": key, "error": err.Error()})
		p.host.Dispatch(key, pane.ScanStop{})
	}
}
