package datasource

import (
	"context"
	"fmt"
	"sync"

	"explore-state-be/pkg/explore/model"
)

// StaticRegistry serves a fixed set of datasources plus the built-in mixed
// datasource.
type StaticRegistry struct {
	mu         sync.RWMutex
	sources    []DataSource
	byUID      map[string]DataSource
	byName     map[string]DataSource
	defaultUID string
	mixed      *Mixed
}

func NewStaticRegistry(defaultUID string, sources ...DataSource) *StaticRegistry {
	r := &StaticRegistry{
		byUID:      map[string]DataSource{},
		byName:     map[string]DataSource{},
		defaultUID: defaultUID,
	}
	r.mixed = NewMixed(r)
	for _, ds := range sources {
		r.Add(ds)
	}
	return r
}

func (r *StaticRegistry) Add(ds DataSource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = append(r.sources, ds)
	r.byUID[ds.Ref().UID] = ds
	r.byName[ds.Name()] = ds
	if r.defaultUID == "" {
		r.defaultUID = ds.Ref().UID
	}
}

func (r *StaticRegistry) Get(ctx context.Context, uidOrName string) (DataSource, error) {
	if uidOrName == MixedUID || uidOrName == MixedType {
		return r.mixed, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if ds, ok := r.byUID[uidOrName]; ok {
		return ds, nil
	}
	if ds, ok := r.byName[uidOrName]; ok {
		return ds, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, uidOrName)
}

// GetByRef resolves ref, falling back to the default datasource for a nil or
// empty reference.
func (r *StaticRegistry) GetByRef(ctx context.Context, ref *model.DataSourceRef) (DataSource, error) {
	if ref == nil || ref.UID == "" {
		return r.Default(ctx)
	}
	return r.Get(ctx, ref.UID)
}

func (r *StaticRegistry) Default(ctx context.Context) (DataSource, error) {
	r.mu.RLock()
	uid := r.defaultUID
	r.mu.RUnlock()
	if uid == "" {
		return nil, ErrNoDatasources
	}
	return r.Get(ctx, uid)
}

func (r *StaticRegistry) Mixed() DataSource {
	return r.mixed
}

func (r *StaticRegistry) List() []DataSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DataSource, len(r.sources))
	copy(out, r.sources)
	return out
}
