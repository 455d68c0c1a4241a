package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowboard/flowboard/api"
	"github.com/flowboard/flowboard/internal/engine"
	"github.com/flowboard/flowboard/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRouter(t *testing.T) (*gin.Engine, *engine.Engine) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Board{},
		&models.Column{},
		&models.Card{},
		&models.CardEvent{},
		&models.AutomationRule{},
	))

	core := engine.New(engine.NewStore(db))
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := &api.Handler{Engine: core}
	h.Register(router.Group("/api"))
	return router, core
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSaveRuleEndpointStatusCodes(t *testing.T) {
	router, core := newTestRouter(t)
	ctx := context.Background()

	board, err := core.CreateBoard(ctx, "API board", []models.Column{{Name: "To Do"}, {Name: "Done", IsTerminal: true}})
	require.NoError(t, err)
	other, err := core.CreateBoard(ctx, "Other board", []models.Column{{Name: "Inbox"}})
	require.NoError(t, err)

	body := map[string]any{
		"name":       "notify on create",
		"trigger":    "card:created",
		"actionType": "notify",
		"actionParams": map[string]any{
			"message": "hello",
		},
	}

	rec := doJSON(t, router, http.MethodPost, "/api/boards/"+board.ID+"/rules", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var saved models.AutomationRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	require.NotEmpty(t, saved.ID)

	// Re-saving with the rule's ID is an update, not a creation.
	body["id"] = saved.ID
	body["name"] = "notify on create, renamed"
	rec = doJSON(t, router, http.MethodPost, "/api/boards/"+board.ID+"/rules", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The same update addressed to another board is rejected, not re-homed.
	rec = doJSON(t, router, http.MethodPost, "/api/boards/"+other.ID+"/rules", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rules, err := core.Store().Rules(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "notify on create, renamed", rules[0].Name)

	rules, err = core.Store().Rules(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
