package model

import "errors"

var (
	ErrPaneNotFound       = errors.New("pane not found")
	ErrTooManyPanes       = errors.New("explore supports at most two panes")
	ErrDatasourceMissing  = errors.New("pane has no datasource")
	ErrInvalidTimeRange   = errors.New("invalid time range")
	ErrNoPendingPrompt    = errors.New("no pending correlation prompt")
	ErrSessionClosed      = errors.New("explore session is closed")
	ErrInvalidQueryIndex  = errors.New("query index out of range")
	ErrUnknownSupplement  = errors.New("unknown supplementary query type")
	ErrInvalidRefreshRate = errors.New("invalid refresh interval")
	ErrSessionNotFound    = errors.New("explore session not found")
)

// Transition names a state change that observers may react to.
type Transition string

const (
	TransitionPaneOpened             Transition = "pane_opened"
	TransitionPaneClosed             Transition = "pane_closed"
	TransitionRunStarted             Transition = "run_started"
	TransitionRangeChanged           Transition = "range_changed"
	TransitionQueriesCommitted       Transition = "queries_committed"
	TransitionResponseUpdated        Transition = "response_updated"
	TransitionDatasourceChanged      Transition = "datasource_changed"
	TransitionRefreshIntervalChanged Transition = "refresh_interval_changed"
	TransitionPaneUpdated            Transition = "pane_updated"
	TransitionCorrelationChanged     Transition = "correlation_changed"
)
