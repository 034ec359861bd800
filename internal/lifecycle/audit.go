package lifecycle

import (
	"encoding/json"

	"gorm.io/gorm"

	"vendra-system/internal/database/models"
)

// appendEvent writes an immutable audit row inside the same transaction as
// the state change it documents.
func appendEvent(tx *gorm.DB, poID int64, eventType models.EventType, description string, actor Actor, metadata map[string]interface{}) error {
	event := models.Event{
		POID:        poID,
		EventType:   eventType,
		Description: description,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
		OrgID:       actor.OrgID,
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		s := string(raw)
		event.Metadata = &s
	}
	return tx.Create(&event).Error
}
