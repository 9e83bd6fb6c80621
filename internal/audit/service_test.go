package audit

import (
	"testing"

	"letscrap-backend/internal/database"
	"letscrap-backend/internal/models"
	"letscrap-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLog(t *testing.T) {
	testutil.SetupDB(t)

	err := WriteLog(LogOptions{
		UserID:      4,
		UserName:    "Kavya",
		EntityType:  EntityScrapRequest,
		EntityID:    11,
		Action:      models.AuditActionStatusChange,
		Description: "Pending -> Accepted",
		Before:      map[string]string{"status": "Pending"},
		After:       map[string]string{"status": "Accepted"},
	})
	require.NoError(t, err)

	var entry models.AuditLog
	require.NoError(t, database.DB.First(&entry).Error)
	assert.Equal(t, uint(4), entry.UserID)
	assert.Equal(t, EntityScrapRequest, entry.EntityType)
	assert.JSONEq(t, `{"status":"Pending"}`, entry.BeforeData)
	assert.JSONEq(t, `{"status":"Accepted"}`, entry.AfterData)
}

func TestSnapshot(t *testing.T) {
	assert.Equal(t, "null", snapshot(nil))
	assert.Equal(t, "null", snapshot(func() {}))
	assert.Equal(t, `{"id":1}`, snapshot(struct {
		ID int `json:"id"`
	}{1}))
}

func TestWriteLogFailsWithoutTable(t *testing.T) {
	db := testutil.SetupDB(t)
	require.NoError(t, db.Migrator().DropTable(&models.AuditLog{}))

	err := WriteLog(LogOptions{EntityType: EntityBill, Action: models.AuditActionCreate})
	assert.Error(t, err)
}
