package events

import "time"

func HistoryAdded(userID, historyID, datasourceUID string, queryCount int, at time.Time) BaseEvent {
	return BaseEvent{
		Type: TypeHistoryAdded,
		Data: map[string]interface{}{
			"user_id":        userID,
			"history_id":     historyID,
			"datasource_uid": datasourceUID,
			"query_count":    queryCount,
		},
		OccurredAt: at,
	}
}

func CorrelationSaved(userID, correlationID, sourceUID, targetUID, label string, at time.Time) BaseEvent {
	return BaseEvent{
		Type: TypeCorrelationSaved,
		Data: map[string]interface{}{
			"user_id":        userID,
			"correlation_id": correlationID,
			"source_uid":     sourceUID,
			"target_uid":     targetUID,
			"label":          label,
		},
		OccurredAt: at,
	}
}

func SessionClosed(userID, sessionID, reason string, at time.Time) BaseEvent {
	return BaseEvent{
		Type: TypeSessionClosed,
		Data: map[string]interface{}{
			"user_id":    userID,
			"session_id": sessionID,
			"reason":     reason,
		},
		OccurredAt: at,
	}
}
