package orchestrator

import (
	"context"

	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/pane"
	"explore-state-be/pkg/explore/pipeline"
	"explore-state-be/pkg/explore/timerange"
)

// ChangeRange moves the pane to raw and re-runs it. With synced times the
// other pane follows in the same update. Range changes keep the cache since
// the query set did not change.
func (o *Orchestrator) ChangeRange(ctx context.Context, key string, raw model.RawTimeRange) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	return o.changeRangeLocked(ctx, key, raw)
}

func (o *Orchestrator) changeRangeLocked(ctx context.Context, key string, raw model.RawTimeRange) error {
	if _, err := o.paneLocked(key); err != nil {
		return err
	}
	if err := o.applyRangeLocked(ctx, key, raw); err != nil {
		return err
	}
	if !o.syncedTimes {
		return nil
	}
	for _, other := range o.order {
		if other == key {
			continue
		}
		if err := o.applyRangeLocked(ctx, other, raw); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) applyRangeLocked(ctx context.Context, key string, raw model.RawTimeRange) error {
	s, err := o.paneLocked(key)
	if err != nil {
		return err
	}
	tr, err := o.resolver.Resolve(raw, s.Timezone)
	if err != nil {
		return err
	}
	o.dispatch(key, pane.ChangeRange{Range: tr})
	o.notify(model.TransitionRangeChanged, key)
	if s.Runnable() != nil {
		return nil
	}
	return o.pipeline.Run(ctx, key, pipeline.RunOptions{PreserveCache: true})
}

// ShiftTime moves the pane range by half its span, back for a negative
// direction.
func (o *Orchestrator) ShiftTime(ctx context.Context, key string, direction int) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	s, err := o.paneLocked(key)
	if err != nil {
		return err
	}
	shifted := timerange.Shift(s.AbsoluteRange, direction, o.resolver.Now().UnixMilli())
	return o.changeRangeLocked(ctx, key, shifted.Raw())
}

// ZoomOut widens the pane range around its center.
func (o *Orchestrator) ZoomOut(ctx context.Context, key string, factor float64) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	s, err := o.paneLocked(key)
	if err != nil {
		return err
	}
	zoomed := timerange.ZoomOut(s.AbsoluteRange, factor, o.resolver.Now().UnixMilli())
	return o.changeRangeLocked(ctx, key, zoomed.Raw())
}
