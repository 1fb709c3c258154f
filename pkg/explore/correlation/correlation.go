// Package correlation tracks the correlation editor session that spans both
// panes and guards the actions that would abandon an unsaved draft.
package correlation

import (
	"context"
	"fmt"

	"explore-state-be/pkg/explore/model"
)

type ActionKind string

const (
	ActionClosePane        ActionKind = "close_pane"
	ActionChangeDatasource ActionKind = "change_datasource"
	ActionCloseEditor      ActionKind = "close_editor"
)

// Action is the pending operation a prompt stands in front of. Left is set
// when the action targets the pane that owns the draft.
type Action struct {
	Kind          ActionKind `json:"kind"`
	PaneKey       string     `json:"paneKey,omitempty"`
	DatasourceUID string     `json:"datasourceUid,omitempty"`
	Left          bool       `json:"isActionLeft"`
}

type Resolution string

const (
	ResolutionCancel   Resolution = "cancel"
	ResolutionContinue Resolution = "continue"
	ResolutionDiscard  Resolution = "discard"
	ResolutionSave     Resolution = "save"
)

func (r Resolution) Valid() bool {
	switch r {
	case ResolutionCancel, ResolutionContinue, ResolutionDiscard, ResolutionSave:
		return true
	}
	return false
}

type Transformation struct {
	Type       string `json:"type"`
	Field      string `json:"field,omitempty"`
	Expression string `json:"expression,omitempty"`
	MapValue   string `json:"mapValue,omitempty"`
}

// Draft is the correlation being authored: a link from a field of the
// source datasource results to a query against the target datasource.
type Draft struct {
	SourceUID       string           `json:"sourceUid"`
	TargetUID       string           `json:"targetUid"`
	Label           string           `json:"label"`
	Description     string           `json:"description,omitempty"`
	Field           string           `json:"field"`
	TargetQuery     *model.Query     `json:"targetQuery,omitempty"`
	Transformations []Transformation `json:"transformations,omitempty"`
}

// Saver persists a draft.
type Saver interface {
	SaveCorrelation(ctx context.Context, draft Draft) error
}

type Prompt struct {
	Message string `json:"message"`
	Action  Action `json:"action"`
}

type Session struct {
	EditorMode       bool    `json:"editorMode"`
	CorrelationDirty bool    `json:"correlationDirty"`
	QueryEditorDirty bool    `json:"queryEditorDirty"`
	IsExiting        bool    `json:"isExiting"`
	PostConfirm      *Action `json:"postConfirmAction,omitempty"`
	Draft            *Draft  `json:"draft,omitempty"`
}

// Start enters editor mode with a clean draft.
func (s *Session) Start(draft Draft) {
	*s = Session{EditorMode: true, Draft: &draft}
}

// Edit replaces the draft and marks it dirty.
func (s *Session) Edit(draft Draft) {
	s.Draft = &draft
	s.CorrelationDirty = true
}

func (s *Session) SetDirty(correlation, queryEditor bool) {
	s.CorrelationDirty = correlation
	s.QueryEditorDirty = queryEditor
}

// Close leaves editor mode and forgets everything about the session.
func (s *Session) Close() {
	*s = Session{}
}

// Prompting reports whether a prompt is waiting for a resolution.
func (s *Session) Prompting() bool {
	return s.IsExiting && s.PostConfirm != nil
}

// Request asks to perform a. When the editor is not active or nothing would
// be lost, ok is false and the caller proceeds. Otherwise the action is
// parked until Resolve and the returned prompt is shown.
func (s *Session) Request(a Action) (Prompt, bool) {
	if !s.EditorMode {
		return Prompt{}, false
	}
	msg, ok := Decide(a, s.CorrelationDirty, s.QueryEditorDirty)
	if !ok {
		return Prompt{}, false
	}
	parked := a
	s.IsExiting = true
	s.PostConfirm = &parked
	return Prompt{Message: msg, Action: a}, true
}

// Resolve settles the pending prompt. It returns the action the caller must
// now run, or nil when the user cancelled. A failed save leaves the prompt
// pending.
func (s *Session) Resolve(ctx context.Context, r Resolution, saver Saver) (*Action, error) {
	if !s.Prompting() {
		return nil, model.ErrNoPendingPrompt
	}
	if !r.Valid() {
		return nil, fmt.Errorf("unknown resolution %q", r)
	}
	action := *s.PostConfirm

	switch r {
	case ResolutionCancel:
		s.IsExiting = false
		s.PostConfirm = nil
		return nil, nil
	case ResolutionDiscard:
		s.CorrelationDirty = false
		s.QueryEditorDirty = false
	case ResolutionSave:
		if s.Draft != nil && saver != nil {
			if err := saver.SaveCorrelation(ctx, *s.Draft); err != nil {
				return nil, fmt.Errorf("saving correlation: %w", err)
			}
		}
	}

	s.IsExiting = false
	s.PostConfirm = nil
	return &action, nil
}

// Completed updates the session after a confirmed or unguarded action ran.
// Closing a pane or the editor ends editor mode, as does a datasource change
// on the draft side. A datasource change on the other side discards that
// pane's query edits.
func (s *Session) Completed(a Action) {
	if !s.EditorMode {
		return
	}
	switch {
	case a.Kind == ActionClosePane, a.Kind == ActionCloseEditor:
		s.Close()
	case a.Kind == ActionChangeDatasource && a.Left:
		s.Close()
	case a.Kind == ActionChangeDatasource:
		s.QueryEditorDirty = false
	}
}
