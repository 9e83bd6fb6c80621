package audit

import (
	"fmt"

	"letscrap-backend/internal/database"
	"letscrap-backend/internal/logging"
	"letscrap-backend/internal/models"

	"github.com/goccy/go-json"
)

const (
	EntityUser         = "user"
	EntityScrapRequest = "scrap_request"
	EntityBill         = "bill"
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog stores one audit entry. Failures are logged and returned; callers usually ignore them
// so that auditing never blocks the main operation.
func WriteLog(opts LogOptions) error {
	// jsonb columns need valid JSON, so absent snapshots are stored as null
	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  snapshot(opts.Before),
		AfterData:   snapshot(opts.After),
	}

	if err := database.DB.Create(&entry).Error; err != nil {
		logging.Error().Err(err).
			Str("entity_type", opts.EntityType).
			Uint("entity_id", opts.EntityID).
			Msg("audit log write failed")
		return fmt.Errorf("audit log could not be saved: %w", err)
	}
	return nil
}

func snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
