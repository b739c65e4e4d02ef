package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive/internal/app"
	iauth "github.com/taskhive/taskhive/internal/auth"
	"github.com/taskhive/taskhive/internal/database/testutil"
	"github.com/taskhive/taskhive/internal/models"
)

type apiRig struct {
	router *gin.Engine
	db     *gorm.DB
	jwt    *iauth.JWTService
	tokens map[string]string
}

func newAPIRig(t *testing.T) *apiRig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:   "router-test-secret",
		Issuer:   "taskhive",
		Audience: "taskhive-api",
		TTL:      time.Hour,
	})
	require.NoError(t, err)

	resolver, err := iauth.NewResolver(db, jwtSvc, nil)
	require.NoError(t, err)

	svc, err := BuildServices(db, nil, "http://localhost:8000")
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Server.Port = 8000

	router, err := NewRouter(db, resolver, jwtSvc, svc, cfg)
	require.NoError(t, err)

	return &apiRig{router: router, db: db, jwt: jwtSvc, tokens: map[string]string{}}
}

func (rig *apiRig) signIn(t *testing.T, uid, email, name string) {
	t.Helper()

	token, err := rig.jwt.GenerateSessionToken(&models.User{
		UID:         uid,
		Email:       email,
		DisplayName: name,
		Provider:    "google",
	})
	require.NoError(t, err)
	rig.tokens[uid] = token

	// Touch an authenticated endpoint so the resolver upserts the user row.
	resp := rig.do(t, uid, http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.Code)
}

func (rig *apiRig) do(t *testing.T, uid, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(data)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token, ok := rig.tokens[uid]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "body: %s", resp.Body.String())
	return envelope.Data
}

func decodeList(t *testing.T, resp *httptest.ResponseRecorder) []map[string]any {
	t.Helper()

	var envelope struct {
		Success bool             `json:"success"`
		Data    []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "body: %s", resp.Body.String())
	return envelope.Data
}

func TestRouterRequiresAuthentication(t *testing.T) {
	rig := newAPIRig(t)

	resp := rig.do(t, "nobody", http.MethodGet, "/api/lists", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Contains(t, resp.Body.String(), "NO_TOKEN")

	resp = rig.do(t, "nobody", http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRouterListAndTaskLifecycle(t *testing.T) {
	rig := newAPIRig(t)
	rig.signIn(t, "rt-ana", "rt-ana@example.com", "Ana")
	rig.signIn(t, "rt-ben", "rt-ben@example.com", "Ben")

	// Ana creates a list.
	resp := rig.do(t, "rt-ana", http.MethodPost, "/api/lists", map[string]string{
		"name":        "Launch prep",
		"description": "Everything before the big day",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	list := decodeData(t, resp)
	listID := list["id"].(string)
	require.Equal(t, "Launch prep", list["name"])

	// Ana invites Ben as editor; Ben accepts.
	resp = rig.do(t, "rt-ana", http.MethodPost, fmt.Sprintf("/api/lists/%s/invitations", listID), map[string]string{
		"email": "rt-ben@example.com",
		"role":  "editor",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	invitation := decodeData(t, resp)
	invitationID := invitation["id"].(string)

	resp = rig.do(t, "rt-ben", http.MethodGet, "/api/invitations", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, decodeList(t, resp), 1)

	resp = rig.do(t, "rt-ben", http.MethodPost, fmt.Sprintf("/api/invitations/%s/accept", invitationID), nil)
	require.Equal(t, http.StatusOK, resp.Code)
	joined := decodeData(t, resp)
	roles := joined["roles"].(map[string]any)
	require.Equal(t, "editor", roles["rt-ben"])

	// Ben, now an editor, creates and completes a task.
	resp = rig.do(t, "rt-ben", http.MethodPost, fmt.Sprintf("/api/lists/%s/tasks", listID), map[string]string{
		"title":    "Book venue",
		"priority": "High",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	task := decodeData(t, resp)
	taskID := task["id"].(string)
	require.Equal(t, "Pending", task["status"])

	resp = rig.do(t, "rt-ben", http.MethodPatch, fmt.Sprintf("/api/lists/%s/tasks/%s", listID, taskID), map[string]any{
		"done": true,
	})
	require.Equal(t, http.StatusOK, resp.Code)
	updated := decodeData(t, resp)
	require.Equal(t, "Completed", updated["status"])
	require.Equal(t, true, updated["done"])

	// Ana hears about Ben's work but not her own actions.
	resp = rig.do(t, "rt-ana", http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	types := map[string]bool{}
	for _, row := range decodeList(t, resp) {
		types[row["type"].(string)] = true
	}
	require.True(t, types["member_added"])
	require.True(t, types["task_created"])
	require.True(t, types["task_completed"])

	// The activity feed recorded the whole story.
	resp = rig.do(t, "rt-ana", http.MethodGet, fmt.Sprintf("/api/lists/%s/activities", listID), nil)
	require.Equal(t, http.StatusOK, resp.Code)
	actions := map[string]bool{}
	for _, row := range decodeList(t, resp) {
		actions[row["action"].(string)] = true
	}
	require.True(t, actions["list_created"])
	require.True(t, actions["member_invited"])
	require.True(t, actions["member_added"])
	require.True(t, actions["task_created"])
	require.True(t, actions["task_completed"])
}

func TestRouterEnforcesRoles(t *testing.T) {
	rig := newAPIRig(t)
	rig.signIn(t, "rr-owner", "rr-owner@example.com", "Owner")
	rig.signIn(t, "rr-viewer", "rr-viewer@example.com", "Viewer")

	resp := rig.do(t, "rr-owner", http.MethodPost, "/api/lists", map[string]string{"name": "Guarded"})
	require.Equal(t, http.StatusCreated, resp.Code)
	listID := decodeData(t, resp)["id"].(string)

	resp = rig.do(t, "rr-owner", http.MethodPost, fmt.Sprintf("/api/lists/%s/invitations", listID), map[string]string{
		"email": "rr-viewer@example.com",
		"role":  "viewer",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	invitationID := decodeData(t, resp)["id"].(string)

	resp = rig.do(t, "rr-viewer", http.MethodPost, fmt.Sprintf("/api/invitations/%s/accept", invitationID), nil)
	require.Equal(t, http.StatusOK, resp.Code)

	// Viewers can read but not write.
	resp = rig.do(t, "rr-viewer", http.MethodGet, fmt.Sprintf("/api/lists/%s", listID), nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = rig.do(t, "rr-viewer", http.MethodPost, fmt.Sprintf("/api/lists/%s/tasks", listID), map[string]string{"title": "Nope"})
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Contains(t, resp.Body.String(), "ACCESS_DENIED")

	resp = rig.do(t, "rr-viewer", http.MethodDelete, fmt.Sprintf("/api/lists/%s", listID), nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	// Strangers see a 403, not the list.
	rig.signIn(t, "rr-stranger", "rr-stranger@example.com", "Stranger")
	resp = rig.do(t, "rr-stranger", http.MethodGet, fmt.Sprintf("/api/lists/%s", listID), nil)
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	rig := newAPIRig(t)

	resp := rig.do(t, "nobody", http.MethodGet, "/api/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Contains(t, resp.Body.String(), "NOT_FOUND")
}
