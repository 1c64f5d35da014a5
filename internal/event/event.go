package event

import "time"

// Type identifies an event kind on the wire. The set is closed: consumers
// treat unrecognized types as forward-compatible no-ops, but this service
// never emits one.
type Type string

const (
	TypeConnected       Type = "connected"
	TypeHeartbeat       Type = "heartbeat"
	TypeItemCreated     Type = "item:created"
	TypeItemUpdated     Type = "item:updated"
	TypeItemDeleted     Type = "item:deleted"
	TypePropertyUpdated Type = "property:updated"
	TypeCommentCreated  Type = "comment:created"
)

// Event is the wire envelope pushed to connected clients. BoardID is nil for
// global events (heartbeat, connected); TriggeredBy is nil when no user
// caused the event. Timestamp marshals as RFC 3339.
type Event struct {
	Type        Type      `json:"type"`
	BoardID     *int64    `json:"boardId"`
	TriggeredBy *int64    `json:"triggeredBy"`
	Data        any       `json:"data"`
	Timestamp   time.Time `json:"timestamp"`
}

func boardEvent(t Type, boardID int64, data any, triggeredBy int64) Event {
	return Event{
		Type:        t,
		BoardID:     &boardID,
		TriggeredBy: &triggeredBy,
		Data:        data,
		Timestamp:   time.Now().UTC(),
	}
}

// Connected is the notice sent to a user right after their stream opens.
func Connected() Event {
	return Event{Type: TypeConnected, Data: "connected", Timestamp: time.Now().UTC()}
}

// Heartbeat is the periodic keep-alive probe. No board scope, no trigger.
func Heartbeat() Event {
	return Event{Type: TypeHeartbeat, Data: "ping", Timestamp: time.Now().UTC()}
}

func ItemCreated(boardID int64, data any, triggeredBy int64) Event {
	return boardEvent(TypeItemCreated, boardID, data, triggeredBy)
}

func ItemUpdated(boardID int64, data any, triggeredBy int64) Event {
	return boardEvent(TypeItemUpdated, boardID, data, triggeredBy)
}

func ItemDeleted(boardID int64, data any, triggeredBy int64) Event {
	return boardEvent(TypeItemDeleted, boardID, data, triggeredBy)
}

func PropertyUpdated(boardID int64, data any, triggeredBy int64) Event {
	return boardEvent(TypePropertyUpdated, boardID, data, triggeredBy)
}

func CommentCreated(boardID int64, data any, triggeredBy int64) Event {
	return boardEvent(TypeCommentCreated, boardID, data, triggeredBy)
}
