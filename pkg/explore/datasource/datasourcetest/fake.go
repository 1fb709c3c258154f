// Package datasourcetest provides a scriptable datasource for tests. Every
// query opens a Stream that the test drives by hand.
package datasourcetest

import (
	"context"
	"sync"

	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/model"
)

type Stream struct {
	Request *model.QueryRequest

	ctx    context.Context
	ch     chan model.DataQueryResponse
	mu     sync.Mutex
	closed bool
}

func newStream(ctx context.Context, req *model.QueryRequest) *Stream {
	s := &Stream{Request: req, ctx: ctx, ch: make(chan model.DataQueryResponse)}
	go func() {
		<-ctx.Done()
		s.Complete()
	}()
	return s
}

// Emit hands resp to the consumer. It returns false once the stream has
// completed or its subscriber went away.
func (s *Stream) Emit(resp model.DataQueryResponse) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- resp:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Stream) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Cancelled reports whether the subscriber released the stream.
func (s *Stream) Cancelled() bool {
	return s.ctx.Err() != nil
}

type Option func(*DataSource)

// WithSupplementary makes the datasource offer the given supplementary
// query types.
func WithSupplementary(types ...model.SupplementaryQueryType) Option {
	return func(d *DataSource) { d.supplementary = types }
}

func WithDefaultQuery(q model.Query) Option {
	return func(d *DataSource) { d.defaultQuery = &q }
}

func WithImporter(fn func(queries []model.Query, from datasource.DataSource) ([]model.Query, error)) Option {
	return func(d *DataSource) { d.importer = fn }
}

// DataSource records every query it receives.
type DataSource struct {
	uid          string
	name         string
	pluginID     string
	defaultQuery *model.Query
	importer     func(queries []model.Query, from datasource.DataSource) ([]model.Query, error)

	supplementary []model.SupplementaryQueryType

	mu         sync.Mutex
	streams    []*Stream
	supStreams map[model.SupplementaryQueryType][]*Stream
}

func New(uid, pluginID string, opts ...Option) *DataSource {
	d := &DataSource{
		uid:        uid,
		name:       uid,
		pluginID:   pluginID,
		supStreams: map[model.SupplementaryQueryType][]*Stream{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DataSource) Ref() model.DataSourceRef {
	return model.DataSourceRef{UID: d.uid, Type: d.pluginID}
}

func (d *DataSource) Name() string { return d.name }

func (d *DataSource) Meta() datasource.Meta {
	return datasource.Meta{ID: d.pluginID, Name: d.pluginID}
}

func (d *DataSource) Query(ctx context.Context, req *model.QueryRequest) <-chan model.DataQueryResponse {
	s := newStream(ctx, req)
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s.ch
}

// Streams returns the main query streams opened so far.
func (d *DataSource) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Stream(nil), d.streams...)
}

func (d *DataSource) QueryCount() int {
	return len(d.Streams())
}

// Last returns the most recent main query stream, or nil.
func (d *DataSource) Last() *Stream {
	streams := d.Streams()
	if len(streams) == 0 {
		return nil
	}
	return streams[len(streams)-1]
}

func (d *DataSource) SupplementaryStreams(t model.SupplementaryQueryType) []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Stream(nil), d.supStreams[t]...)
}

func (d *DataSource) SupportedSupplementaryQueryTypes() []model.SupplementaryQueryType {
	return d.supplementary
}

func (d *DataSource) DataProvider(t model.SupplementaryQueryType, req *model.QueryRequest) datasource.DataProvider {
	if !datasource.Supports(d, t) {
		return nil
	}
	return func(ctx context.Context) <-chan model.DataQueryResponse {
		s := newStream(ctx, req)
		d.mu.Lock()
		d.supStreams[t] = append(d.supStreams[t], s)
		d.mu.Unlock()
		return s.ch
	}
}

// Importing wraps d so that it also implements datasource.QueryImporter
// and, when configured, datasource.DefaultQueryProvider.
type Importing struct {
	*DataSource
}

func (i Importing) ImportQueries(ctx context.Context, queries []model.Query, from datasource.DataSource) ([]model.Query, error) {
	return i.importer(queries, from)
}

type Defaulting struct {
	*DataSource
}

func (d Defaulting) DefaultQuery() model.Query {
	return *d.defaultQuery
}
