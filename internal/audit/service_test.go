package audit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	auditRepo "github.com/mrlokans/bookie/internal/database/audit"
	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/importers"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	repo := auditRepo.NewRepository(db)
	svc := NewService(repo)
	t.Cleanup(svc.Close)

	return svc, db
}

var testRequest = RequestInfo{RequestID: "req-1", IPAddress: "192.168.1.1", UserAgent: "Mozilla/5.0"}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		UserID:      1,
		EventType:   entities.AuditEventImport,
		Action:      "test_import",
		Description: "Test import event",
		Status:      entities.AuditStatusSuccess,
	}

	err := svc.Log(event)
	require.NoError(t, err)

	var saved entities.AuditEvent
	err = db.First(&saved, event.ID).Error
	require.NoError(t, err)
	assert.Equal(t, "test_import", saved.Action)
}

func TestService_LogImport(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogImport(1, testRequest, "livraddict.csv", "csv", importers.ImportResult{Imported: 5, Total: 5, Dropped: 1}, 120*time.Millisecond, nil)
	svc.LogImport(1, testRequest, "partial.xlsx", "xlsx", importers.ImportResult{
		Imported:      2,
		Skipped:       1,
		Errors:        1,
		Total:         3,
		ErrorMessages: []string{"Broken: metadata enrichment failed"},
	}, time.Second, nil)
	svc.LogImport(1, testRequest, "broken.csv", "csv", importers.ImportResult{}, 0, errors.New("no importable rows found"))
	svc.Close()

	var success entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "csv_import").Order("id ASC").First(&success).Error)
	assert.Equal(t, entities.AuditStatusSuccess, success.Status)
	assert.Equal(t, "5 livres importés, 0 doublons, 0 erreurs", success.Description)
	assert.Contains(t, success.Metadata, `"dropped":1`)
	assert.Contains(t, success.Metadata, "livraddict.csv")
	assert.EqualValues(t, 120, success.DurationMs)
	assert.Equal(t, "req-1", success.RequestID)

	var partial entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "xlsx_import").First(&partial).Error)
	assert.Equal(t, entities.AuditStatusPartial, partial.Status)
	assert.Contains(t, partial.ErrorMsg, "Broken")

	var failed entities.AuditEvent
	require.NoError(t, db.Where("action = ? AND status = ?", "csv_import", entities.AuditStatusFailed).First(&failed).Error)
	assert.Contains(t, failed.ErrorMsg, "no importable rows")
}

func TestService_LogExport(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogExport(1, testRequest, "xlsx", 42, nil)
	svc.Close()

	var event entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "xlsx_export").First(&event).Error)
	assert.Equal(t, entities.AuditEventExport, event.EventType)
	assert.Contains(t, event.Description, "42")
}

func TestService_LogMetadata(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogMetadata(1, testRequest, 42, "Enriched Dune", nil)
	svc.LogMetadata(0, RequestInfo{}, 0, "Backfill", errors.New("breaker open"))
	svc.Close()

	var single entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "book_enrich").First(&single).Error)
	require.NotNil(t, single.EntityID)
	assert.Equal(t, uint(42), *single.EntityID)

	var bulk entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "metadata_backfill").First(&bulk).Error)
	assert.Equal(t, entities.AuditStatusFailed, bulk.Status)
	assert.Nil(t, bulk.EntityID)
}

func TestService_LogLogin(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogLogin(1, testRequest, "reader", true)
	svc.LogLogin(0, RequestInfo{IPAddress: "10.0.0.1"}, "intruder", false)
	svc.LogLogout(1, testRequest)
	svc.Close()

	var events []entities.AuditEvent
	require.NoError(t, db.Where("event_type = ?", entities.AuditEventAuth).Order("id ASC").Find(&events).Error)
	require.Len(t, events, 3)
	assert.Equal(t, entities.AuditStatusSuccess, events[0].Status)
	assert.Equal(t, "192.168.1.1", events[0].IPAddress)
	assert.Equal(t, entities.AuditStatusFailed, events[1].Status)
	assert.Equal(t, "logout", events[2].Action)
}

func TestService_CloseIsIdempotent(t *testing.T) {
	svc, db := setupTestService(t)

	svc.Close()
	svc.Close()
	svc.LogLogout(1, testRequest)

	var count int64
	require.NoError(t, db.Model(&entities.AuditEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestService_GetEvents(t *testing.T) {
	svc, _ := setupTestService(t)

	for i := 0; i < 5; i++ {
		err := svc.Log(&entities.AuditEvent{
			UserID:    1,
			EventType: entities.AuditEventImport,
			Action:    "test",
			Status:    entities.AuditStatusSuccess,
		})
		require.NoError(t, err)
	}

	events, total, err := svc.GetEvents(auditRepo.EventFilter{UserID: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, events, 5)
}

func TestService_DeleteOldEvents(t *testing.T) {
	svc, db := setupTestService(t)

	oldEvent := &entities.AuditEvent{
		UserID:    1,
		EventType: entities.AuditEventImport,
		Action:    "old",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, db.Create(oldEvent).Error)

	newEvent := &entities.AuditEvent{
		UserID:    1,
		EventType: entities.AuditEventExport,
		Action:    "new",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(newEvent).Error)

	deleted, err := svc.DeleteOldEvents(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []entities.AuditEvent
	db.Find(&remaining)
	assert.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].Action)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a very long string", 10, "this is..."},
		{"", 5, ""},
	}

	for _, tc := range tests {
		result := truncate(tc.input, tc.maxLen)
		assert.Equal(t, tc.expected, result)
	}
}

func TestRequestInfoFromGin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/api/import", nil)
	c.Request.RemoteAddr = "10.1.2.3:5555"
	c.Request.Header.Set("User-Agent", "curl/8.0")
	c.Set(RequestIDKey, "req-42")

	info := RequestInfoFromGin(c)

	assert.Equal(t, RequestInfo{RequestID: "req-42", IPAddress: "10.1.2.3", UserAgent: "curl/8.0"}, info)
}
