package orchestrator

import (
	"context"

	"explore-state-be/pkg/explore/correlation"
	"explore-state-be/pkg/explore/model"
)

// StartCorrelation enters the correlation editor with draft.
func (o *Orchestrator) StartCorrelation(draft correlation.Draft) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	o.correlation.Start(draft)
	o.notify(model.TransitionCorrelationChanged, "")
	return nil
}

// EditCorrelation replaces the draft and marks it dirty.
func (o *Orchestrator) EditCorrelation(draft correlation.Draft) error {
	return o.withCorrelation(func(s *correlation.Session) { s.Edit(draft) })
}

func (o *Orchestrator) SetCorrelationDirty(correlationDirty, queryEditorDirty bool) error {
	return o.withCorrelation(func(s *correlation.Session) { s.SetDirty(correlationDirty, queryEditorDirty) })
}

func (o *Orchestrator) withCorrelation(fn func(*correlation.Session)) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	fn(&o.correlation)
	o.notify(model.TransitionCorrelationChanged, "")
	return nil
}

// RequestClosePane closes the pane unless the correlation editor wants a
// confirmation first, in which case the prompt is returned and nothing
// happens until ResolveCorrelationPrompt.
func (o *Orchestrator) RequestClosePane(ctx context.Context, key string) (*correlation.Prompt, error) {
	if err := o.lock(); err != nil {
		return nil, err
	}
	if _, err := o.paneLocked(key); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	action := correlation.Action{Kind: correlation.ActionClosePane, PaneKey: key, Left: o.isLeft(key)}
	prompt, ok := o.requestLocked(action)
	o.mu.Unlock()
	if ok {
		return prompt, nil
	}
	return nil, o.perform(ctx, action)
}

// RequestChangeDatasource changes the pane datasource, importing its
// queries, unless a confirmation is needed first.
func (o *Orchestrator) RequestChangeDatasource(ctx context.Context, key, uid string) (*correlation.Prompt, error) {
	if err := o.lock(); err != nil {
		return nil, err
	}
	if _, err := o.paneLocked(key); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	action := correlation.Action{Kind: correlation.ActionChangeDatasource, PaneKey: key, DatasourceUID: uid, Left: o.isLeft(key)}
	prompt, ok := o.requestLocked(action)
	o.mu.Unlock()
	if ok {
		return prompt, nil
	}
	return nil, o.perform(ctx, action)
}

// RequestCloseEditor leaves the correlation editor unless a confirmation is
// needed first.
func (o *Orchestrator) RequestCloseEditor(ctx context.Context) (*correlation.Prompt, error) {
	if err := o.lock(); err != nil {
		return nil, err
	}
	action := correlation.Action{Kind: correlation.ActionCloseEditor}
	prompt, ok := o.requestLocked(action)
	o.mu.Unlock()
	if ok {
		return prompt, nil
	}
	return nil, o.perform(ctx, action)
}

func (o *Orchestrator) requestLocked(a correlation.Action) (*correlation.Prompt, bool) {
	prompt, ok := o.correlation.Request(a)
	if !ok {
		return nil, false
	}
	o.notify(model.TransitionCorrelationChanged, a.PaneKey)
	return &prompt, true
}

// ResolveCorrelationPrompt settles the pending prompt and, unless it was
// cancelled, runs the parked action.
func (o *Orchestrator) ResolveCorrelationPrompt(ctx context.Context, r correlation.Resolution) error {
	if err := o.lock(); err != nil {
		return err
	}
	action, err := o.correlation.Resolve(ctx, r, o.saver)
	if err == nil {
		o.notify(model.TransitionCorrelationChanged, "")
	}
	o.mu.Unlock()
	if err != nil || action == nil {
		return err
	}
	return o.perform(ctx, *action)
}

func (o *Orchestrator) perform(ctx context.Context, a correlation.Action) error {
	var err error
	switch a.Kind {
	case correlation.ActionClosePane:
		err = o.SplitClose(a.PaneKey)
	case correlation.ActionChangeDatasource:
		err = o.ChangeDatasource(ctx, a.PaneKey, a.DatasourceUID, DatasourceOptions{ImportQueries: true})
	}
	if err != nil {
		return err
	}

	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	if o.correlation.EditorMode {
		o.correlation.Completed(a)
		o.notify(model.TransitionCorrelationChanged, a.PaneKey)
	}
	return nil
}

// Correlation returns a copy of the correlation editor session.
func (o *Orchestrator) Correlation() correlation.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.correlation
	if s.PostConfirm != nil {
		a := *s.PostConfirm
		s.PostConfirm = &a
	}
	return s
}
