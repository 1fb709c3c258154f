package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"explore-state-be/internal/config"
	"explore-state-be/internal/dto"
	"explore-state-be/internal/pkg/serverutils"
	"explore-state-be/internal/repository/memory"
	"explore-state-be/internal/service"
	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/datasource/datasourcetest"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "explore-test-secret"

type apiEnv struct {
	t     *testing.T
	app   *fiber.App
	user  uuid.UUID
	token string
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)

	sessions := memory.NewSessionRepository(time.Hour, time.Hour)
	t.Cleanup(sessions.CloseAll)
	loki := datasourcetest.New("loki-1", "loki")
	prom := datasourcetest.New("prom-1", "prometheus")
	explore := service.NewExploreService(service.ExploreDependencies{
		Sessions: sessions,
		Registry: datasource.NewStaticRegistry("loki-1", loki, prom),
	}, config.ExploreConfig{LiveThrottle: -1, DefaultTimezone: "utc", DefaultRangeFrom: "now-1h", DefaultRangeTo: "now"})

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewExploreController(explore, nil, nil).RegisterRoutes(app.Group("/api"))

	user := uuid.New()
	return &apiEnv{t: t, app: app, user: user, token: signToken(t, user)}
}

func signToken(t *testing.T, user uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *apiEnv) do(method, path string, body interface{}, token string) (int, serverutils.BaseResponse, json.RawMessage) {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var envelope struct {
		serverutils.BaseResponse
		Data json.RawMessage `json:"data"`
	}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	require.NoError(e.t, json.Unmarshal(raw, &envelope), string(raw))
	return resp.StatusCode, envelope.BaseResponse, envelope.Data
}

func (e *apiEnv) createSession() dto.SessionResponse {
	e.t.Helper()
	status, _, data := e.do(http.MethodPost, "/api/explore/v1/sessions", nil, e.token)
	require.Equal(e.t, fiber.StatusCreated, status)
	var sess dto.SessionResponse
	require.NoError(e.t, json.Unmarshal(data, &sess))
	return sess
}

func TestRoutesRequireToken(t *testing.T) {
	env := newAPIEnv(t)

	status, _, _ := env.do(http.MethodPost, "/api/explore/v1/sessions", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _, _ = env.do(http.MethodPost, "/api/explore/v1/sessions", nil, "not-a-jwt")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCreateAndChangeRange(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession()
	require.Len(t, sess.Panes, 1)
	pane := sess.Panes[0].Key

	status, _, data := env.do(http.MethodPut, "/api/explore/v1/sessions/"+sess.ID+"/panes/"+pane+"/range",
		dto.ChangeRangeRequest{From: "now-6h", To: "now"}, env.token)
	require.Equal(t, fiber.StatusOK, status)
	var updated dto.SessionResponse
	require.NoError(t, json.Unmarshal(data, &updated))
	assert.Equal(t, "now-6h", updated.Panes[0].Range.Raw.From)
}

func TestErrorsMapToStatusCodes(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession()
	base := "/api/explore/v1/sessions/" + sess.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown session", http.MethodGet, "/api/explore/v1/sessions/nope", nil, fiber.StatusNotFound},
		{"unknown pane", http.MethodPost, base + "/panes/zzz/run", nil, fiber.StatusNotFound},
		{"invalid range", http.MethodPut, base + "/panes/" + sess.Panes[0].Key + "/range", dto.ChangeRangeRequest{From: "yesterday-ish", To: "now"}, fiber.StatusBadRequest},
		{"missing range field", http.MethodPut, base + "/panes/" + sess.Panes[0].Key + "/range", map[string]string{"from": "now-1h"}, fiber.StatusBadRequest},
		{"unknown supplementary type", http.MethodPut, base + "/panes/" + sess.Panes[0].Key + "/supplementary/traces", dto.SupplementaryToggleRequest{Enabled: true}, fiber.StatusBadRequest},
		{"bad resolution", http.MethodPost, base + "/correlation/resolve", dto.ResolveCorrelationRequest{Resolution: "maybe"}, fiber.StatusBadRequest},
		{"no pending prompt", http.MethodPost, base + "/correlation/resolve", dto.ResolveCorrelationRequest{Resolution: "cancel"}, fiber.StatusConflict},
		{"history without database", http.MethodGet, "/api/explore/v1/history", nil, fiber.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res, _ := env.do(tt.method, tt.path, tt.body, env.token)
			assert.Equal(t, tt.want, status)
			assert.False(t, res.Success)
		})
	}
}

func TestOtherUsersCannotSeeSession(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession()

	status, _, _ := env.do(http.MethodGet, "/api/explore/v1/sessions/"+sess.ID, nil, signToken(t, uuid.New()))
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestSplitThenClose(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession()
	base := "/api/explore/v1/sessions/" + sess.ID

	status, _, data := env.do(http.MethodPost, base+"/split", dto.SplitOpenRequest{Datasource: "prom-1"}, env.token)
	require.Equal(t, fiber.StatusOK, status)
	var split dto.SplitOpenResponse
	require.NoError(t, json.Unmarshal(data, &split))
	require.Len(t, split.Session.Panes, 2)

	status, _, data = env.do(http.MethodPost, base+"/split", nil, env.token)
	require.Equal(t, fiber.StatusOK, status)
	var replaced dto.SplitOpenResponse
	require.NoError(t, json.Unmarshal(data, &replaced))
	assert.Len(t, replaced.Session.Panes, 2, "the second pane is replaced")
	assert.NotEqual(t, split.PaneKey, replaced.PaneKey)

	status, _, _ = env.do(http.MethodDelete, base+"/panes/"+replaced.PaneKey, nil, env.token)
	require.Equal(t, fiber.StatusOK, status)

	status, _, _ = env.do(http.MethodDelete, base, nil, env.token)
	require.Equal(t, fiber.StatusOK, status)
	status, _, _ = env.do(http.MethodGet, base, nil, env.token)
	assert.Equal(t, fiber.StatusNotFound, status)
}
