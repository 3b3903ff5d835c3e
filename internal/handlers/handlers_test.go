package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"reasondesk/config"
	"reasondesk/internal/ai"
	"reasondesk/internal/app"
	"reasondesk/internal/database/dbtest"
	. "reasondesk/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope map[string]json.RawMessage

func newServer(t *testing.T, cfg config.Config) *fiber.App {
	server, _ := newServerWithApp(t, cfg)
	return server
}

func newServerWithApp(t *testing.T, cfg config.Config) (*fiber.App, *app.App) {
	t.Helper()

	cfg.Environment = "test"
	stub := ai.NewStub(64)
	stub.TextFunc = func(prompt string) (string, error) {
		if strings.Contains(prompt, "施術理由書") {
			return "理由書本文", nil
		}
		return "- 腰痛\n- 温熱療法", nil
	}

	a, err := app.Build(cfg, dbtest.New(t), stub)
	require.NoError(t, err)

	server := fiber.New()
	require.NoError(t, Router(server, a))
	return server, a
}

func call(t *testing.T, server *fiber.App, method, path string, body any, headers ...string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := server.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := envelope{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

type recordJSON struct {
	ID             string `json:"id"`
	Symptoms       string `json:"symptoms"`
	PatientGender  string `json:"patientGender"`
	ApprovalStatus string `json:"approvalStatus"`
	Tags           []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"tags"`
}

func createRecord(t *testing.T, server *fiber.App) recordJSON {
	t.Helper()
	status, body := call(t, server, fiber.MethodPost, "/api/case-records", map[string]any{
		"patientId":     "P-1",
		"patientAge":    "42",
		"patientGender": "m",
		"bodyPart":      "腰部",
		"symptoms":      "腰痛！ 重い物を持ち上げた",
		"treatment":     "温熱療法",
		"diagnosis":     "急性腰痛症",
	})
	require.Equal(t, fiber.StatusCreated, status)
	return decode[recordJSON](t, body["caseRecord"])
}

func TestHealth(t *testing.T) {
	server := newServer(t, config.Config{})

	status, body := call(t, server, fiber.MethodGet, "/api/health", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, `"ok"`, string(body["status"]))
}

func TestCaseRecordRoutes(t *testing.T) {
	server := newServer(t, config.Config{})

	record := createRecord(t, server)
	assert.Equal(t, "腰痛 重い物を持ち上げた", record.Symptoms)
	assert.Equal(t, "M", record.PatientGender)
	assert.Equal(t, "pending", record.ApprovalStatus)
	require.Len(t, record.Tags, 2)

	status, _ := call(t, server, fiber.MethodGet, "/api/case-records/"+record.ID, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = call(t, server, fiber.MethodGet, "/api/case-records/missing", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body := call(t, server, fiber.MethodPost, "/api/case-records", map[string]any{"patientId": "P-2"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, string(body["errors"]), "symptoms")

	status, body = call(t, server, fiber.MethodGet, "/api/case-records?tags="+url.QueryEscape("温熱療法")+"&limit=5", nil)
	require.Equal(t, fiber.StatusOK, status)
	page := decode[struct {
		Items []recordJSON `json:"items"`
		Total int64        `json:"total"`
		Limit int          `json:"limit"`
	}](t, body["caseRecords"])
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 5, page.Limit)

	status, _ = call(t, server, fiber.MethodGet, "/api/case-records?limit=abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = call(t, server, fiber.MethodPost, "/api/case-records/search", map[string]any{"query": "腰痛", "threshold": 0.01})
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body["caseRecords"]), record.ID)

	status, _ = call(t, server, fiber.MethodPut, "/api/case-records/"+record.ID+"/status", map[string]any{"status": "approved"})
	assert.Equal(t, fiber.StatusOK, status)

	status, body = call(t, server, fiber.MethodPut, "/api/case-records/"+record.ID+"/status", map[string]any{"status": "pending"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Contains(t, string(body["error"]), "invalid status transition")

	status, body = call(t, server, fiber.MethodPost, "/api/case-records/"+record.ID+"/reason-letter", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body["reasonLetter"]), "理由書本文")

	status, _ = call(t, server, fiber.MethodDelete, "/api/case-records/"+record.ID+"/tags", map[string]any{"tagIds": []string{record.Tags[0].ID}})
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = call(t, server, fiber.MethodPost, "/api/case-records/"+record.ID+"/tags", map[string]any{"tagIds": []string{}})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = call(t, server, fiber.MethodDelete, "/api/case-records/"+record.ID, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = call(t, server, fiber.MethodDelete, "/api/case-records/"+record.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestTagRoutes(t *testing.T) {
	server := newServer(t, config.Config{})
	createRecord(t, server)

	status, body := call(t, server, fiber.MethodGet, "/api/tags/popular", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body["tags"]), "温熱療法")

	status, body = call(t, server, fiber.MethodPost, "/api/tags", map[string]any{"name": "労災", "category": "cause"})
	require.Equal(t, fiber.StatusCreated, status)
	tag := decode[struct {
		ID string `json:"id"`
	}](t, body["tag"])

	status, body = call(t, server, fiber.MethodGet, "/api/tags/category/cause", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body["tags"]), tag.ID)

	status, _ = call(t, server, fiber.MethodPost, "/api/tags/merge", map[string]any{"sourceId": tag.ID, "targetId": tag.ID})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = call(t, server, fiber.MethodPost, "/api/tags/merge", map[string]any{"sourceId": tag.ID, "targetId": "missing"})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestFeedbackRoutes(t *testing.T) {
	server := newServer(t, config.Config{})
	record := createRecord(t, server)

	status, _ := call(t, server, fiber.MethodPost, "/api/feedback", map[string]any{
		"caseRecordId": record.ID,
		"type":         "rejection",
		"content":      "あいうえおかきくけ",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = call(t, server, fiber.MethodPost, "/api/feedback", map[string]any{
		"caseRecordId": record.ID,
		"type":         "rejection",
		"content":      "あいうえおかきくけこ",
	})
	assert.Equal(t, fiber.StatusCreated, status)

	status, body := call(t, server, fiber.MethodGet, "/api/feedback/case-record/"+record.ID, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, body["feedback"]), 1)

	status, body = call(t, server, fiber.MethodGet, "/api/feedback/trends?days=7", nil)
	require.Equal(t, fiber.StatusOK, status)
	trends := decode[[]struct {
		Count int64 `json:"count"`
	}](t, body["trends"])
	require.Len(t, trends, 7)
	assert.Equal(t, int64(1), trends[6].Count)

	status, body = call(t, server, fiber.MethodGet, "/api/feedback/stats/approval-rate", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body["stats"]), `"rejected":1`)

	status, _ = call(t, server, fiber.MethodGet, "/api/feedback/stats/approval-rate?start=2025-02-01&end=2025-01-01", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestStatsRoutes(t *testing.T) {
	server := newServer(t, config.Config{})
	createRecord(t, server)

	status, body := call(t, server, fiber.MethodGet, "/api/stats/dashboard", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body["dashboard"]), `"total":1`)

	status, body = call(t, server, fiber.MethodGet, "/api/stats/monthly?year=2024", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, body["trend"]), 12)

	status, _ = call(t, server, fiber.MethodGet, "/api/stats/users/me", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCrudRoutes(t *testing.T) {
	server := newServer(t, config.Config{})

	status, body := call(t, server, fiber.MethodPost, "/api/clients", map[string]any{"name": "山田整骨院"})
	require.Equal(t, fiber.StatusCreated, status)
	client := decode[struct {
		ID       string `json:"id"`
		IsActive bool   `json:"isActive"`
	}](t, body["client"])
	assert.True(t, client.IsActive)

	status, body = call(t, server, fiber.MethodGet, "/api/clients?page=1&limit=10", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body["clients"]), client.ID)

	status, _ = call(t, server, fiber.MethodPost, "/api/meetings", map[string]any{
		"clientId":     client.ID,
		"exhibitionId": "missing",
		"title":        "導入相談",
		"startTime":    "2026-05-20T10:00:00Z",
		"endTime":      "2026-05-20T11:00:00Z",
	})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = call(t, server, fiber.MethodDelete, "/api/clients/"+client.ID, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = call(t, server, fiber.MethodGet, "/api/clients/"+client.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAuthFlow(t *testing.T) {
	server, a := newServerWithApp(t, config.Config{AuthJWTSecret: "secret"})

	status, _ := call(t, server, fiber.MethodGet, "/api/case-records", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = call(t, server, fiber.MethodGet, "/api/health", nil)
	assert.Equal(t, fiber.StatusOK, status)

	_, err := a.UserController.CreateUser(context.Background(), CreateUserRequest{
		Email:    "reviewer@example.com",
		Password: "password1",
	})
	require.NoError(t, err)

	status, _ = call(t, server, fiber.MethodPost, "/api/auth/login", map[string]any{"email": "reviewer@example.com", "password": "wrong-pass"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := call(t, server, fiber.MethodPost, "/api/auth/login", map[string]any{"email": "reviewer@example.com", "password": "password1"})
	require.Equal(t, fiber.StatusOK, status)
	token := decode[string](t, body["token"])
	require.NotEmpty(t, token)

	status, body = call(t, server, fiber.MethodGet, "/api/users/me", nil, fiber.HeaderAuthorization, "Bearer "+token)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body["user"]), "reviewer@example.com")
	assert.NotContains(t, string(body["user"]), "password")

	status, _ = call(t, server, fiber.MethodGet, "/api/case-records", nil, fiber.HeaderAuthorization, "Bearer "+token)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestAdminRoutes(t *testing.T) {
	server, a := newServerWithApp(t, config.Config{AuthJWTSecret: "secret"})
	ctx := context.Background()

	login := func(email, role string) string {
		_, err := a.UserController.CreateUser(ctx, CreateUserRequest{Email: email, Role: role, Password: "password1"})
		require.NoError(t, err)
		status, body := call(t, server, fiber.MethodPost, "/api/auth/login", map[string]any{"email": email, "password": "password1"})
		require.Equal(t, fiber.StatusOK, status)
		return decode[string](t, body["token"])
	}
	adminToken := login("admin@example.com", RoleAdmin)
	reviewerToken := login("reviewer@example.com", RoleReviewer)

	announcement := map[string]any{"message": "メンテナンスのお知らせ"}

	status, body := call(t, server, fiber.MethodPost, "/api/admin/announcements", announcement, fiber.HeaderAuthorization, "Bearer "+adminToken)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Contains(t, string(body["event"]), "メンテナンスのお知らせ")

	status, _ = call(t, server, fiber.MethodPost, "/api/admin/announcements", announcement, fiber.HeaderAuthorization, "Bearer "+reviewerToken)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = call(t, server, fiber.MethodPost, "/api/admin/announcements", map[string]any{"message": ""}, fiber.HeaderAuthorization, "Bearer "+adminToken)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = call(t, server, fiber.MethodPost, "/api/admin/cache/flush", nil, fiber.HeaderAuthorization, "Bearer "+adminToken)
	assert.Equal(t, fiber.StatusOK, status)
}
