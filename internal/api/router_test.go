package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/camdenwatts/teamspace/internal/app"
	iauth "github.com/camdenwatts/teamspace/internal/auth"
	"github.com/camdenwatts/teamspace/internal/database/testutil"
	"github.com/camdenwatts/teamspace/internal/services"
)

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithMigrations())

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret", Issuer: "teamspace"})
	require.NoError(t, err)

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	workspaces, err := services.NewWorkspaceService(db, nil)
	require.NoError(t, err)
	invitations, err := services.NewInvitationService(db, nil, nil)
	require.NoError(t, err)

	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Server.RateLimit.MaxRequests = 0 // disable the limiter in tests

	router, err := NewRouter(db, jwt, cfg, Services{
		Users:       users,
		Workspaces:  workspaces,
		Invitations: invitations,
	}, nil)
	require.NoError(t, err)

	return &testEnv{router: router, db: db}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) registerUser(t *testing.T, email string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    email,
		"name":     strings.Split(email, "@")[0],
		"password": "long enough password",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func (e *testEnv) createWorkspace(t *testing.T, token string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/workspaces", token, gin.H{"name": "Acme"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.ID
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "jane@acme.test")

	w := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "jane@acme.test")

	w = env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "jane@acme.test",
		"password": "long enough password",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestInvitationLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.registerUser(t, "owner@acme.test")
	workspaceID := env.createWorkspace(t, ownerToken)

	// Issue an invitation.
	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/workspaces/%s/invitations", workspaceID), ownerToken, gin.H{
		"email": "jane@acme.test",
		"role":  "member",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data struct {
			Invitation struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"invitation"`
			EmailSent bool `json:"email_sent"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, "pending", created.Data.Invitation.Status)
	// No mailer configured in tests.
	require.False(t, created.Data.EmailSent)

	// Duplicate pending invitation is refused with a conflict.
	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/workspaces/%s/invitations", workspaceID), ownerToken, gin.H{
		"email": "jane@acme.test",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	// Listing returns the pending invitation with pagination metadata.
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/workspaces/%s/invitations?page=1&per_page=10", workspaceID), ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"meta"`)
	require.Contains(t, w.Body.String(), `"total":1`)

	// Resolve the raw token directly from the service for the accept leg:
	// the API never exposes tokens after issuance.
	resendURL := fmt.Sprintf("/api/workspaces/%s/invitations/%s/resend", workspaceID, created.Data.Invitation.ID)
	w = env.do(t, http.MethodPost, resendURL, ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"reminders_sent":1`)

	// Cancel it.
	cancelURL := fmt.Sprintf("/api/workspaces/%s/invitations/%s", workspaceID, created.Data.Invitation.ID)
	w = env.do(t, http.MethodDelete, cancelURL, ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Cancelling again conflicts: the state is terminal.
	w = env.do(t, http.MethodDelete, cancelURL, ownerToken, nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestInvitationTokenRoutes(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.registerUser(t, "owner@acme.test")
	workspaceID := env.createWorkspace(t, ownerToken)

	// Create through the service so the raw token is available.
	users, err := services.NewUserService(env.db)
	require.NoError(t, err)
	invitations, err := services.NewInvitationService(env.db, nil, nil)
	require.NoError(t, err)

	owner, err := users.Authenticate(context.Background(), "owner@acme.test", "long enough password")
	require.NoError(t, err)

	created, err := invitations.Create(context.Background(), services.CreateInvitationInput{
		WorkspaceID: workspaceID,
		InvitedBy:   owner.ID,
		Email:       "jane@acme.test",
	})
	require.NoError(t, err)

	// Public lookup.
	w := env.do(t, http.MethodGet, "/api/invitations/"+created.Token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"workspace_name":"Acme"`)

	// Accept requires authentication.
	w = env.do(t, http.MethodPost, "/api/invitations/"+created.Token+"/accept", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// A matching registered user accepts successfully.
	janeToken := env.registerUser(t, "jane@acme.test")
	w = env.do(t, http.MethodPost, "/api/invitations/"+created.Token+"/accept", janeToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Members listing now shows both users.
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/workspaces/%s/members", workspaceID), ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"total":2`)
}

func TestInvitationDeclineOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.registerUser(t, "owner@acme.test")
	workspaceID := env.createWorkspace(t, ownerToken)

	users, err := services.NewUserService(env.db)
	require.NoError(t, err)
	invitations, err := services.NewInvitationService(env.db, nil, nil)
	require.NoError(t, err)
	owner, err := users.Authenticate(context.Background(), "owner@acme.test", "long enough password")
	require.NoError(t, err)

	created, err := invitations.Create(context.Background(), services.CreateInvitationInput{
		WorkspaceID: workspaceID,
		InvitedBy:   owner.ID,
		Email:       "jane@acme.test",
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/invitations/"+created.Token+"/decline", "", gin.H{"reason": "not interested"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"status":"declined"`)
}

func TestBulkImportOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.registerUser(t, "owner@acme.test")
	workspaceID := env.createWorkspace(t, ownerToken)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/workspaces/%s/invitations/bulk", workspaceID), ownerToken, gin.H{
		"name": "Q3 hires",
		"invitations": []gin.H{
			{"email": "a@acme.test"},
			{"email": "b@acme.test", "role": "admin"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"total":2`)
	require.Contains(t, w.Body.String(), `"successful":2`)

	// CSV import with one bad row.
	csv := "email,role\nc@acme.test,member\nnot-an-email,member\n"
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/workspaces/%s/invitations/import", workspaceID), strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+ownerToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"row_errors"`)

	// Analytics over the workspace funnel.
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/workspaces/%s/invitations/analytics", workspaceID), ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"acceptance_rate":0`)
	require.Contains(t, w.Body.String(), `"total":3`)
}

func TestValidationErrorsRender422(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.registerUser(t, "owner@acme.test")
	workspaceID := env.createWorkspace(t, ownerToken)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/workspaces/%s/invitations", workspaceID), ownerToken, gin.H{
		"email": "not-an-email",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, w.Body.String(), "VALIDATION_FAILED")
	require.Contains(t, w.Body.String(), `"email"`)
}

func TestExpiredInvitationRendersGone(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.registerUser(t, "owner@acme.test")
	workspaceID := env.createWorkspace(t, ownerToken)

	users, err := services.NewUserService(env.db)
	require.NoError(t, err)
	owner, err := users.Authenticate(context.Background(), "owner@acme.test", "long enough password")
	require.NoError(t, err)

	clock := time.Now().Add(-72 * time.Hour)
	invitations, err := services.NewInvitationService(env.db, nil, nil,
		services.WithInvitationClock(func() time.Time { return clock }),
	)
	require.NoError(t, err)

	created, err := invitations.Create(context.Background(), services.CreateInvitationInput{
		WorkspaceID:   workspaceID,
		InvitedBy:     owner.ID,
		Email:         "late@acme.test",
		ExpiresInDays: 1,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodGet, "/api/invitations/"+created.Token, "", nil)
		require.Equal(t, http.StatusGone, w.Code)
		require.Contains(t, w.Body.String(), "INVITATION_EXPIRED")
		require.Contains(t, w.Body.String(), `"status":"expired"`)
	}
}
