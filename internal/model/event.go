package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventUploadCreated     EventType = "upload.created"
	EventItemStatusChanged EventType = "item.status_changed"
	EventItemsApproved     EventType = "items.approved"
	EventItemsRejected     EventType = "items.rejected"
	EventItemEdited        EventType = "item.edited"
	EventItemDeleted       EventType = "item.deleted"
	EventUploadDeleted     EventType = "upload.deleted"
)

// StagingEvent is one entry of an upload's audit trail.
type StagingEvent struct {
	ID        string          `json:"id"`
	UploadID  string          `json:"uploadId"`
	Type      EventType       `json:"type"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
