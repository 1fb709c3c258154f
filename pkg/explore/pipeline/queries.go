package pipeline

import (
	"context"

	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/model"
)

// ImportQueries translates queries written for from into queries for to.
// When no translation path exists, or translation fails, the result is a
// single empty query for to.
func (p *Pipeline) ImportQueries(ctx context.Context, queries []model.Query, from, to datasource.DataSource) []model.Query {
	var imported []model.Query
	var err error

	switch {
	case from == nil, datasource.IsMixed(to):
		imported = queries
	case from.Meta().ID == to.Meta().ID:
		imported = model.CloneQueries(queries)
		for i := range imported {
			imported[i].Datasource = nil
		}
	default:
		exporter, canExport := from.(datasource.AbstractQueryExporter)
		abstractImporter, canImportAbstract := to.(datasource.AbstractQueryImporter)
		importer, canImport := to.(datasource.QueryImporter)

		switch {
		case canExport && canImportAbstract:
			var abstract []datasource.AbstractQuery
			abstract, err = exporter.ExportToAbstractQueries(ctx, queries)
			if err == nil {
				imported, err = abstractImporter.ImportFromAbstractQueries(ctx, abstract)
			}
		case canImport:
			imported, err = importer.ImportQueries(ctx, queries, from)
		}
	}

	if err != nil {
		p.logger.Warn(moduleName, "Query import failed", map[string]interface{}{
			"from":  from.Ref().UID,
			"to":    to.Ref().UID,
			"error": err.Error(),
		})
		imported = nil
	}

	var override *model.DataSourceRef
	if !datasource.IsMixed(to) {
		override = datasource.RefOf(to)
	}
	return p.EnsureQueries(ctx, imported, override)
}

// RetargetQueries points queries tagged for another datasource at to. It
// returns nil when nothing changes. Queries of a mixed target keep their
// own datasources.
func RetargetQueries(queries []model.Query, to datasource.DataSource) []model.Query {
	if to == nil || datasource.IsMixed(to) {
		return nil
	}
	ref := to.Ref()
	var out []model.Query
	for i, q := range queries {
		if q.Datasource == nil || q.Datasource.UID == ref.UID {
			continue
		}
		if out == nil {
			out = model.CloneQueries(queries)
		}
		r := ref
		out[i].Datasource = &r
	}
	return out
}

// EnsureQueries gives every query a fresh key and a ref id, points it at
// override when set and drops queries whose datasource cannot be resolved.
// An empty result becomes a single empty query.
func (p *Pipeline) EnsureQueries(ctx context.Context, queries []model.Query, override *model.DataSourceRef) []model.Query {
	out := make([]model.Query, 0, len(queries))
	for _, q := range queries {
		q = q.Clone()
		if override != nil {
			ref := *override
			q.Datasource = &ref
		}
		if q.Datasource != nil && q.Datasource.UID != "" {
			if _, err := p.registry.GetByRef(ctx, q.Datasource); err != nil {
				continue
			}
		}
		q.Key = model.GenerateKey(len(out))
		out = append(out, q)
	}
	if len(out) == 0 {
		return []model.Query{p.EmptyQuery(ctx, nil, 0, override)}
	}
	return model.WithUniqueRefIDs(out)
}

// EmptyQuery builds a blank row for insertion into queries. Its datasource
// is override, else that of the last query, else the default datasource.
// Datasources that provide a default query seed it.
func (p *Pipeline) EmptyQuery(ctx context.Context, queries []model.Query, index int, override *model.DataSourceRef) model.Query {
	ref := override
	if ref == nil && len(queries) > 0 && queries[len(queries)-1].Datasource != nil {
		last := *queries[len(queries)-1].Datasource
		ref = &last
	}

	var q model.Query
	if ds, err := p.registry.GetByRef(ctx, ref); err == nil {
		if provider, ok := ds.(datasource.DefaultQueryProvider); ok {
			q = provider.DefaultQuery().Clone()
		}
		if ref == nil {
			ref = datasource.RefOf(ds)
		}
	}
	if ref != nil {
		copied := *ref
		ref = &copied
	}

	q.RefID = model.NextRefID(queries)
	q.Key = model.GenerateKey(index)
	q.Datasource = ref
	return q
}
