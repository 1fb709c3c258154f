package correlation

import "fmt"

const (
	saveQuestion = " Would you like to save before continuing?"

	msgRightPaneRerun = "Closing the pane will cause the query in the right pane to be re-run and links added to that data." + saveQuestion
	msgVariablesLost  = "You have changed the query in the right pane. Closing the editor will remove the variables, and your changed query may no longer be valid." + saveQuestion
)

func actionPhrase(kind ActionKind) string {
	switch kind {
	case ActionClosePane:
		return "Closing the pane"
	case ActionChangeDatasource:
		return "Changing the datasource"
	}
	return "Closing the editor"
}

// CorrelationLostMessage is shown whenever a dirty draft would be dropped.
func CorrelationLostMessage(kind ActionKind) string {
	return fmt.Sprintf("%s will cause the correlation in progress to be lost.%s", actionPhrase(kind), saveQuestion)
}

func queryLostMessage(kind ActionKind) string {
	return fmt.Sprintf("%s will lose the changed query.%s", actionPhrase(kind), saveQuestion)
}

// Decide returns the prompt message for a, or false when a may run without
// confirmation.
func Decide(a Action, correlationDirty, queryEditorDirty bool) (string, bool) {
	switch a.Kind {
	case ActionClosePane:
		switch {
		case correlationDirty:
			return CorrelationLostMessage(a.Kind), true
		case queryEditorDirty && a.Left:
			return msgRightPaneRerun, true
		case queryEditorDirty:
			return queryLostMessage(a.Kind), true
		}
	case ActionChangeDatasource:
		if a.Left && correlationDirty {
			return CorrelationLostMessage(a.Kind), true
		}
		if !a.Left && queryEditorDirty {
			return queryLostMessage(a.Kind), true
		}
	case ActionCloseEditor:
		switch {
		case correlationDirty:
			return CorrelationLostMessage(a.Kind), true
		case queryEditorDirty:
			return msgVariablesLost, true
		}
	}
	return "", false
}
