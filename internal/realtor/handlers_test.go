package realtor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter() (*gin.Engine, *MemoryStore) {
	store := NewMemoryStore()
	handler := NewHandler(store)

	router := gin.New()
	handler.RegisterAdminRoutes(router.Group("/admin"))

	_ = store.Create(context.Background(), &Realtor{
		ID:        "rl_1",
		Name:      "Harbor Homes",
		Slug:      "harbor-homes",
		Plan:      PlanStandard,
		AccountID: "acct_harbor",
		Status:    StatusActive,
		Settings:  DefaultSettingsForPlan(PlanStandard),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})

	return router, store
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateRealtor_Success(t *testing.T) {
	router, store := setupTestRouter()

	w := doJSON(router, http.MethodPost, "/admin/realtors", map[string]string{
		"name":      "Seaside Stays",
		"slug":      "Seaside-Stays",
		"plan":      "plus",
		"accountId": "acct_seaside",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Realtor Realtor `json:"realtor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Realtor.ID)
	assert.Equal(t, "seaside-stays", resp.Realtor.Slug) // slug is lowercased
	assert.Equal(t, PlanPlus, resp.Realtor.Plan)
	assert.Equal(t, int64(800), resp.Realtor.Settings.CommissionBps)

	got, err := store.GetBySlug(context.Background(), "seaside-stays")
	require.NoError(t, err)
	assert.Equal(t, "acct_seaside", got.AccountID)
}

func TestCreateRealtor_DefaultsToStandardPlan(t *testing.T) {
	router, _ := setupTestRouter()

	w := doJSON(router, http.MethodPost, "/admin/realtors", map[string]string{
		"name": "No Plan Props",
		"slug": "no-plan-props",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Realtor Realtor `json:"realtor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, PlanStandard, resp.Realtor.Plan)
	assert.Equal(t, int64(1000), resp.Realtor.Settings.CommissionBps)
}

func TestCreateRealtor_Validation(t *testing.T) {
	router, _ := setupTestRouter()

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
		wantErr  string
	}{
		{"missing name", map[string]string{"slug": "x-y-z"}, http.StatusBadRequest, "invalid_request"},
		{"bad slug", map[string]string{"name": "A", "slug": "UP CASE!"}, http.StatusBadRequest, "invalid_slug"},
		{"short slug", map[string]string{"name": "A", "slug": "ab"}, http.StatusBadRequest, "invalid_slug"},
		{"unknown plan", map[string]string{"name": "A", "slug": "a-b-c", "plan": "diamond"}, http.StatusBadRequest, "invalid_plan"},
		{"duplicate slug", map[string]string{"name": "A", "slug": "harbor-homes"}, http.StatusConflict, "slug_taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/admin/realtors", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantErr)
		})
	}
}

func TestGetRealtor(t *testing.T) {
	router, _ := setupTestRouter()

	w := doJSON(router, http.MethodGet, "/admin/realtors/rl_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Harbor Homes")

	w = doJSON(router, http.MethodGet, "/admin/realtors/rl_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateRealtor_PlanChangeResetsTerms(t *testing.T) {
	router, store := setupTestRouter()

	w := doJSON(router, http.MethodPatch, "/admin/realtors/rl_1", map[string]string{
		"plan": "premium",
	})
	require.Equal(t, http.StatusOK, w.Code)

	got, err := store.Get(context.Background(), "rl_1")
	require.NoError(t, err)
	assert.Equal(t, PlanPremium, got.Plan)
	assert.Equal(t, int64(600), got.Settings.CommissionBps)
}

func TestUpdateRealtor_Suspend(t *testing.T) {
	router, store := setupTestRouter()

	w := doJSON(router, http.MethodPatch, "/admin/realtors/rl_1", map[string]string{
		"status": "suspended",
	})
	require.Equal(t, http.StatusOK, w.Code)

	got, _ := store.Get(context.Background(), "rl_1")
	assert.Equal(t, StatusSuspended, got.Status)

	w = doJSON(router, http.MethodPatch, "/admin/realtors/rl_1", map[string]string{
		"status": "vanished",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_status")
}
