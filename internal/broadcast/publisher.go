package broadcast

import (
	"log/slog"

	"github.com/taskflow/realtime/internal/event"
)

// Publisher is the typed publish surface for the CRUD layers. Every method
// is fire-and-forget: a send is a buffered enqueue, so publishing never
// blocks on client I/O and never returns a delivery error.
type Publisher struct {
	broadcaster *Broadcaster
}

func NewPublisher(broadcaster *Broadcaster) *Publisher {
	return &Publisher{broadcaster: broadcaster}
}

// deletedProperty is the tombstone payload sent when a property definition
// is removed; clients drop the property by id.
type deletedProperty struct {
	PropertyID int64 `json:"propertyId"`
	BoardID    int64 `json:"boardId"`
	Deleted    bool  `json:"deleted"`
}

func (p *Publisher) ItemCreated(boardID int64, item any, triggeredBy int64) {
	slog.Debug("Publishing item:created", "board_id", boardID, "triggered_by", triggeredBy)
	p.broadcaster.SendToBoard(event.ItemCreated(boardID, item, triggeredBy))
}

func (p *Publisher) ItemUpdated(boardID int64, item any, triggeredBy int64) {
	slog.Debug("Publishing item:updated", "board_id", boardID, "triggered_by", triggeredBy)
	p.broadcaster.SendToBoard(event.ItemUpdated(boardID, item, triggeredBy))
}

func (p *Publisher) ItemDeleted(boardID int64, item any, triggeredBy int64) {
	slog.Debug("Publishing item:deleted", "board_id", boardID, "triggered_by", triggeredBy)
	p.broadcaster.SendToBoard(event.ItemDeleted(boardID, item, triggeredBy))
}

// ItemCompleted announces completion as an item:updated event; the payload
// carries the completed state.
func (p *Publisher) ItemCompleted(boardID int64, item any, triggeredBy int64) {
	p.ItemUpdated(boardID, item, triggeredBy)
}

// ItemRestored announces restoration as an item:updated event.
func (p *Publisher) ItemRestored(boardID int64, item any, triggeredBy int64) {
	p.ItemUpdated(boardID, item, triggeredBy)
}

func (p *Publisher) PropertyUpdated(boardID int64, property any, triggeredBy int64) {
	slog.Debug("Publishing property:updated", "board_id", boardID, "triggered_by", triggeredBy)
	p.broadcaster.SendToBoard(event.PropertyUpdated(boardID, property, triggeredBy))
}

// PropertyCreated announces a new property definition as property:updated.
func (p *Publisher) PropertyCreated(boardID int64, property any, triggeredBy int64) {
	p.PropertyUpdated(boardID, property, triggeredBy)
}

// PropertyDeleted announces a removed property definition as
// property:updated with a tombstone payload carrying only the id.
func (p *Publisher) PropertyDeleted(boardID, propertyID, triggeredBy int64) {
	payload := deletedProperty{PropertyID: propertyID, BoardID: boardID, Deleted: true}
	p.PropertyUpdated(boardID, payload, triggeredBy)
}

func (p *Publisher) CommentCreated(boardID int64, comment any, triggeredBy int64) {
	slog.Debug("Publishing comment:created", "board_id", boardID, "triggered_by", triggeredBy)
	p.broadcaster.SendToBoard(event.CommentCreated(boardID, comment, triggeredBy))
}
