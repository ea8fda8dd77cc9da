package streams

import (
	"fmt"
	"log/slog"

	"github.com/jimdaga/briefdesk/internal/models"
	"gorm.io/gorm"
)

// HandleBriefingEvent returns a handler that keeps users.last_briefing_at in
// step with briefing writes.
func HandleBriefingEvent(db *gorm.DB) func(BriefingEvent) error {
	return func(ev BriefingEvent) error {
		switch ev.Type {
		case EventCreated, EventUpdated:
			result := db.Model(&models.User{}).
				Where("id = ? AND (last_briefing_at IS NULL OR last_briefing_at < ?)", ev.OwnerID, ev.OccurredAt).
				Update("last_briefing_at", ev.OccurredAt)
			if result.Error != nil {
				return fmt.Errorf("failed to update user %d: %w", ev.OwnerID, result.Error)
			}

			slog.Info("Briefing event applied",
				"type", ev.Type,
				"briefing_id", ev.BriefingID,
				"owner_id", ev.OwnerID,
			)
		case EventDeleted:
			slog.Info("Briefing deleted",
				"briefing_id", ev.BriefingID,
				"owner_id", ev.OwnerID,
			)
		default:
			return fmt.Errorf("unknown event type: %s", ev.Type)
		}
		return nil
	}
}
