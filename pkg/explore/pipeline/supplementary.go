package pipeline

import (
	"context"
	"fmt"

	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/pane"
)

// runSupplementary replaces the supplementary providers of the pane with
// ones derived from req and subscribes the enabled types. Disabled types
// keep their last data.
func (p *Pipeline) runSupplementary(key string, req *model.QueryRequest) {
	s, ok := p.host.Pane(key)
	if !ok {
		return
	}
	support, _ := s.Datasource.(datasource.SupplementaryQuerySupport)

	for _, t := range model.SupplementaryQueryTypes {
		sq := s.SupplementaryQueries[t]
		if sq.DataSubscription != nil {
			sq.DataSubscription.Unsubscribe()
			p.host.Dispatch(key, pane.SetSupplementarySubscription{Type: t})
		}

		var provider datasource.DataProvider
		if support != nil && !s.IsLive && datasource.Supports(s.Datasource, t) {
			supReq := req.Clone()
			supReq.RequestID = fmt.Sprintf("%s_%s_0", req.RequestID, t.SnakeCase())
			provider = support.DataProvider(t, supReq)
		}
		if provider == nil {
			p.host.Dispatch(key, pane.CleanSupplementaryQuery{Type: t})
			p.host.Dispatch(key, pane.CleanSupplementaryProvider{Type: t})
			continue
		}

		p.host.Dispatch(key, pane.SetSupplementaryProvider{Type: t, Provider: provider})
		if sq.Enabled {
			p.host.Dispatch(key, pane.CleanSupplementaryQuery{Type: t})
			p.subscribeSupplementary(key, t)
		}
	}
}

func (p *Pipeline) cleanSupplementary(key string, s pane.State) {
	for _, t := range model.SupplementaryQueryTypes {
		if sub := s.SupplementaryQueries[t].DataSubscription; sub != nil {
			sub.Unsubscribe()
		}
		p.host.Dispatch(key, pane.CleanSupplementaryQuery{Type: t})
		p.host.Dispatch(key, pane.CleanSupplementaryProvider{Type: t})
	}
}

// subscribeSupplementary starts the stream of type t when it is enabled,
// has a provider and is not already running.
func (p *Pipeline) subscribeSupplementary(key string, t model.SupplementaryQueryType) {
	s, ok := p.host.Pane(key)
	if !ok {
		return
	}
	sq := s.SupplementaryQueries[t]
	if !sq.Enabled || sq.DataProvider == nil || sq.DataSubscription != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := newSubscription(cancel)
	stream := sq.DataProvider(ctx)
	p.host.Dispatch(key, pane.SetSupplementarySubscription{Type: t, Subscription: sub})

	go func() {
		for resp := range stream {
			p.host.Do(func() {
				cur, ok := p.host.Pane(key)
				if !ok || cur.SupplementaryQueries[t].DataSubscription != pane.Subscription(sub) {
					return
				}
				if resp.Error != nil && resp.Error.Kind == model.ErrorKindCancelled {
					return
				}
				p.host.Dispatch(key, pane.SupplementaryDataUpdated{Type: t, Data: Decorate(resp, nil)})
				p.host.Notify(model.TransitionResponseUpdated, key)
			})
		}
	}()
}

// SetSupplementaryEnabled toggles type t for the pane and persists the
// choice. Enabling subscribes right away when a provider is available.
func (p *Pipeline) SetSupplementaryEnabled(ctx context.Context, key string, t model.SupplementaryQueryType, enabled bool) error {
	if !knownSupplementary(t) {
		return fmt.Errorf("%w: %s", model.ErrUnknownSupplement, t)
	}
	s, ok := p.host.Pane(key)
	if !ok {
		return model.ErrPaneNotFound
	}

	if sub := s.SupplementaryQueries[t].DataSubscription; !enabled && sub != nil {
		sub.Unsubscribe()
	}
	p.host.Dispatch(key, pane.SetSupplementaryEnabled{Type: t, Enabled: enabled})

	if p.prefs != nil {
		if err := p.prefs.SetSupplementaryQueryEnabled(ctx, t, enabled); err != nil {
			p.logger.Warn(moduleName, "Failed to persist supplementary query setting", map[string]interface{}{
				"type":  string(t),
				"error": err.Error(),
			})
		}
	}
	if enabled {
		p.subscribeSupplementary(key, t)
	}
	return nil
}

func knownSupplementary(t model.SupplementaryQueryType) bool {
	for _, known := range model.SupplementaryQueryTypes {
		if known == t {
			return true
		}
	}
	return false
}
