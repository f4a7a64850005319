package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookie/internal/auth"
	"github.com/mrlokans/bookie/internal/database/books"
	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/importers"
)

type libraryPage struct {
	Data    []entities.UserBook `json:"data"`
	Total   int64               `json:"total"`
	Limit   int                 `json:"limit"`
	HasMore bool                `json:"has_more"`
}

func seedLibrary(t *testing.T, app *testApp) {
	t.Helper()
	w := app.do(newUploadRequest(t, "file", "export.csv", []byte(sampleCSV)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLibrary_List(t *testing.T) {
	app := newTestApp(t, 1<<20)
	seedLibrary(t, app)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/library", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var page libraryPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Data, 2)
	assert.False(t, page.HasMore)
	assert.NotEmpty(t, page.Data[0].Book.Title)
}

func TestLibrary_ListFilters(t *testing.T) {
	app := newTestApp(t, 1<<20)
	seedLibrary(t, app)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"by status", "?status=pal", []string{"L'Étranger"}},
		{"by author", "?q=zola", []string{"Germinal"}},
		{"no match", "?q=proust", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(httptest.NewRequest(http.MethodGet, "/api/library"+tt.query, nil))
			require.Equal(t, http.StatusOK, w.Code)

			var page libraryPage
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
			var titles []string
			for _, entry := range page.Data {
				titles = append(titles, entry.Book.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestLibrary_ListPaging(t *testing.T) {
	app := newTestApp(t, 1<<20)
	seedLibrary(t, app)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/library?limit=1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var page libraryPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 1, page.Limit)
	assert.True(t, page.HasMore)
}

func TestLibrary_ListRejectsUnknownStatus(t *testing.T) {
	app := newTestApp(t, 1<<20)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/library?status=burned", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLibrary_Stats(t *testing.T) {
	app := newTestApp(t, 1<<20)
	seedLibrary(t, app)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/library/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Total    int64                             `json:"total"`
		ByStatus map[entities.ReadingStatus]int64 `json:"by_status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus[entities.StatusRead])
	assert.Equal(t, int64(1), stats.ByStatus[entities.StatusPAL])
}

func TestLibrary_ExportCSV(t *testing.T) {
	app := newTestApp(t, 1<<20)
	seedLibrary(t, app)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/library/export?format=csv", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Regexp(t, `attachment; filename="bookie-\d{4}-\d{2}-\d{2}\.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "Germinal")

	// The export is a valid import file.
	parsed, _, err := importers.ParseFile("export.csv", w.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, parsed.Rows, 2)
}

func TestLibrary_ExportXLSX(t *testing.T) {
	app := newTestApp(t, 1<<20)
	seedLibrary(t, app)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/library/export?format=xlsx", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
}

func TestLibrary_ExportUnknownFormat(t *testing.T) {
	app := newTestApp(t, 1<<20)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/library/export?format=pdf", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type failingLibrary struct{}

func (failingLibrary) ListLibrary(uint, books.LibraryFilter) ([]entities.UserBook, int64, error) {
	return nil, 0, errors.New("database is locked")
}

func (failingLibrary) CountByStatus(uint) (map[entities.ReadingStatus]int64, error) {
	return nil, errors.New("database is locked")
}

func (failingLibrary) GetLibraryForExport(uint) ([]entities.UserBook, error) {
	return nil, errors.New("database is locked")
}

func (failingLibrary) FindUserBook(uint, uint) (*entities.UserBook, error) {
	return nil, errors.New("database is locked")
}

func TestLibrary_StoreErrors(t *testing.T) {
	controller := NewLibraryController(failingLibrary{}, nil)
	controller.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }

	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set(auth.ContextKeyUserID, uint(1)) })
	router.GET("/api/library", controller.List)
	router.GET("/api/library/stats", controller.Stats)
	router.GET("/api/library/export", controller.Export)

	for _, path := range []string{"/api/library", "/api/library/stats", "/api/library/export"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.NotContains(t, w.Body.String(), "locked", path)
	}
}
