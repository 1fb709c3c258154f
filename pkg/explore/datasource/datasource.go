package datasource

import (
	"context"
	"errors"

	"explore-state-be/pkg/explore/model"
)

const (
	MixedUID  = "-- Mixed --"
	MixedType = "mixed"
)

var (
	ErrNotFound           = errors.New("datasource not found")
	ErrNoDatasources      = errors.New("no datasources configured")
	ErrImportNotSupported = errors.New("query import not supported")
)

type Meta struct {
	// ID is the plugin type, shared by every instance of the same kind.
	ID    string `json:"id"`
	Name  string `json:"name"`
	Mixed bool   `json:"mixed,omitempty"`
}

// DataSource runs queries. The returned channel carries every emission of
// the request and is closed by the datasource when the stream completes or
// ctx is cancelled.
type DataSource interface {
	Ref() model.DataSourceRef
	Name() string
	Meta() Meta
	Query(ctx context.Context, req *model.QueryRequest) <-chan model.DataQueryResponse
}

// QueryImporter converts queries written for another datasource.
type QueryImporter interface {
	ImportQueries(ctx context.Context, queries []model.Query, from DataSource) ([]model.Query, error)
}

type LabelMatcher struct {
	Name     string `json:"name"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// AbstractQuery is a datasource neutral description of a label selector.
type AbstractQuery struct {
	RefID         string         `json:"refId"`
	LabelMatchers []LabelMatcher `json:"labelMatchers"`
}

type AbstractQueryExporter interface {
	ExportToAbstractQueries(ctx context.Context, queries []model.Query) ([]AbstractQuery, error)
}

type AbstractQueryImporter interface {
	ImportFromAbstractQueries(ctx context.Context, queries []AbstractQuery) ([]model.Query, error)
}

type DefaultQueryProvider interface {
	DefaultQuery() model.Query
}

// DataProvider starts a supplementary query stream when invoked.
type DataProvider func(ctx context.Context) <-chan model.DataQueryResponse

type SupplementaryQuerySupport interface {
	SupportedSupplementaryQueryTypes() []model.SupplementaryQueryType
	// DataProvider returns nil when req has nothing to derive the given
	// supplementary query from.
	DataProvider(t model.SupplementaryQueryType, req *model.QueryRequest) DataProvider
}

type Registry interface {
	// Get looks a datasource up by uid or by name.
	Get(ctx context.Context, uidOrName string) (DataSource, error)
	GetByRef(ctx context.Context, ref *model.DataSourceRef) (DataSource, error)
	Default(ctx context.Context) (DataSource, error)
	Mixed() DataSource
	List() []DataSource
}

func IsMixed(ds DataSource) bool {
	return ds != nil && ds.Meta().Mixed
}

// RefOf returns a pointer to the datasource reference, nil for a nil source.
func RefOf(ds DataSource) *model.DataSourceRef {
	if ds == nil {
		return nil
	}
	ref := ds.Ref()
	return &ref
}

// Supports reports whether ds can serve the supplementary query type t.
func Supports(ds DataSource, t model.SupplementaryQueryType) bool {
	s, ok := ds.(SupplementaryQuerySupport)
	if !ok {
		return false
	}
	for _, supported := range s.SupportedSupplementaryQueryTypes() {
		if supported == t {
			return true
		}
	}
	return false
}
