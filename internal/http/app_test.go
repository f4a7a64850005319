package http

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookie/internal/audit"
	"github.com/mrlokans/bookie/internal/auth"
	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/database"
	auditRepo "github.com/mrlokans/bookie/internal/database/audit"
	"github.com/mrlokans/bookie/internal/database/books"
	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/importers"
)

const sampleCSV = "titre;auteur;isbn;note;statut\n" +
	"Germinal;Émile Zola;9782253004226;15;lu\n" +
	";Sans titre;;;\n" +
	"L'Étranger;Albert Camus;;;pal\n"

// testApp is the full router in no-auth mode over a temporary database.
type testApp struct {
	router *gin.Engine
	db     *database.Database
	books  *books.Repository
	audit  *audit.Service
	user   *entities.User
}

func newTestApp(t *testing.T, maxFileSize int64) *testApp {
	t.Helper()
	db := setupTestDatabase(t)

	user, err := db.EnsureUser("bookie")
	require.NoError(t, err)

	repo := books.NewRepository(db.DB)
	auditService := audit.NewService(auditRepo.NewRepository(db.DB))
	t.Cleanup(auditService.Close)

	authCfg := config.Auth{Mode: config.AuthModeNone}
	router := NewRouter(RouterConfig{
		Importer:          importers.NewPipeline(repo, nil, importers.Config{Workers: 2, RowTimeout: time.Second}),
		Library:           repo,
		Database:          db,
		Auditor:           auditService,
		MaxImportFileSize: maxFileSize,
		AuthConfig:        authCfg,
		AuthMiddleware:    auth.NewMiddleware(nil, nil, authCfg, user),
		Version:           "test",
	})

	return &testApp{router: router, db: db, books: repo, audit: auditService, user: user}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// flushAudit waits until queued audit events are written.
func (a *testApp) flushAudit() {
	a.audit.Close()
}

func newUploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, writer.WriteField("comment", "no file"))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
