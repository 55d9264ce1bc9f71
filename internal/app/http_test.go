package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vsg/api/internal/auth"
	"vsg/api/internal/config"
	"vsg/api/internal/docstore"
	"vsg/api/internal/metrics"
	"vsg/api/internal/search"
	"vsg/api/internal/slot"
)

const testPassword = "VSG2026"

type harness struct {
	handler http.Handler
	service *Service
	store   *docstore.Store
}

func newHarness(t *testing.T, sl slot.Slot, httpCfg HTTPConfig) *harness {
	t.Helper()
	if sl == nil {
		sl = slot.NewMemory()
	}
	store := docstore.Open(context.Background(), sl, docstore.WithLogger(zap.NewNop()))
	svc, err := New(config.Config{
		AdminPassword: testPassword,
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
	}, Dependencies{
		Store:  store,
		Slot:   sl,
		Guests: auth.NewGuestNames(7),
	})
	require.NoError(t, err)
	return &harness{
		handler: NewHTTPServer(svc, httpCfg).Handler(),
		service: svc,
		store:   store,
	}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	case []byte:
		reader = bytes.NewReader(v)
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func (h *harness) adminToken(t *testing.T) string {
	t.Helper()
	rr := h.do(t, http.MethodPost, "/api/session/admin", "", map[string]string{"password": testPassword})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[map[string]any](t, rr)["token"].(string)
}

type guestLogin struct {
	Token   string           `json:"token"`
	UserID  string           `json:"userId"`
	Name    string           `json:"userName"`
	Role    string           `json:"role"`
	Profile docstore.Profile `json:"profile"`
}

func (h *harness) guest(t *testing.T) guestLogin {
	t.Helper()
	rr := h.do(t, http.MethodPost, "/api/session/guest", "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[guestLogin](t, rr)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := decode[map[string]any](t, rr)["code"].(string)
	return code
}

type unreachableSlot struct{ *slot.Memory }

func (unreachableSlot) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})

	rr := h.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode[map[string]any](t, rr)["ok"])

	rr = h.do(t, http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ready", decode[map[string]any](t, rr)["status"])

	down := newHarness(t, unreachableSlot{slot.NewMemory()}, HTTPConfig{})
	rr = down.do(t, http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "not_ready", decode[map[string]any](t, rr)["status"])
}

func TestRequestIDAndCORS(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{CORSOrigin: "https://vsg.example"})

	req := httptest.NewRequest(http.MethodOptions, "/api/news", nil)
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://vsg.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr = httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	assert.Equal(t, "req-42", rr.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})
	rr := h.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rr))
}

func TestAdminLogin(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})

	rr := h.do(t, http.MethodPost, "/api/session/admin", "", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "WRONG_PASSWORD", errorCode(t, rr))

	rr = h.do(t, http.MethodPost, "/api/session/admin", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "MISSING_FIELDS", errorCode(t, rr))

	token := h.adminToken(t)
	rr = h.do(t, http.MethodGet, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	session := decode[map[string]any](t, rr)
	assert.Equal(t, true, session["authenticated"])
	assert.Equal(t, "VSG_Admin", session["userName"])
	assert.Equal(t, "admin", session["role"])

	rr = h.do(t, http.MethodGet, "/api/session", "garbage", nil)
	assert.Equal(t, false, decode[map[string]any](t, rr)["authenticated"])
}

func TestAdminLoginRateLimit(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{LoginRatePerMinute: 2})
	body := map[string]string{"password": "wrong"}

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/session/admin", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/session/admin", "", body).Code)
	rr := h.do(t, http.MethodPost, "/api/session/admin", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "TOO_MANY_REQUESTS", errorCode(t, rr))
}

func TestGuestLoginRateLimit(t *testing.T) {
	mem := slot.NewMemory()
	h := newHarness(t, mem, HTTPConfig{LoginRatePerMinute: 2})

	h.guest(t)
	h.guest(t)
	for i := 0; i < 48; i++ {
		rr := h.do(t, http.MethodPost, "/api/session/guest", "", nil)
		require.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "TOO_MANY_REQUESTS", errorCode(t, rr))
	}
	assert.Len(t, h.store.GetAllUsers(), 3)

	// Guests draw from their own buckets.
	assert.NotEmpty(t, h.adminToken(t))
}

func TestGuestLoginCreatesUserAndProfile(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})

	login := h.guest(t)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "2", login.UserID)
	assert.Equal(t, "user", login.Role)
	assert.True(t, strings.HasPrefix(login.Name, "Игрок_"), login.Name)

	require.Len(t, login.Profile.Activities, 2)
	assert.Equal(t, "Тестовый вход", login.Profile.Activities[0].Title)
	assert.Equal(t, int64(2), login.Profile.Activities[0].ID)
	assert.Equal(t, docstore.ActivityRegistration, login.Profile.Activities[1].Type)
	assert.Equal(t, docstore.NoviceRank, login.Profile.Rank)

	user, ok := h.store.GetUser(2)
	require.True(t, ok)
	assert.Equal(t, docstore.RoleUser, user.Role)
}

func TestNewsRoutes(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})
	admin := h.adminToken(t)
	player := h.guest(t).Token
	post := map[string]any{"title": "Второй ивент", "content": "<p>Сбор в 20:00</p>", "author": "VSG_Command"}

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/news", "", post).Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/api/news", player, post).Code)

	rr := h.do(t, http.MethodPost, "/api/news", admin, map[string]any{"title": "Без текста"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "MISSING_FIELDS", errorCode(t, rr))

	rr = h.do(t, http.MethodPost, "/api/news", admin, post)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	added := decode[docstore.News](t, rr)
	assert.Equal(t, int64(2), added.ID)
	assert.NotEmpty(t, added.Date)

	rr = h.do(t, http.MethodGet, "/api/news?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]docstore.News](t, rr), 1)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/news?limit=x", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/news/99", admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodDelete, "/api/news/abc", admin, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodDelete, "/api/news/2", admin, nil).Code)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodDelete, "/api/news", admin, nil).Code)
	rr = h.do(t, http.MethodGet, "/api/news", "", nil)
	assert.Empty(t, decode[[]docstore.News](t, rr))
}

func TestScheduleRoutes(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})
	admin := h.adminToken(t)

	rr := h.do(t, http.MethodPost, "/api/schedule", admin, map[string]any{
		"day": "Воскресенье", "time": "18:00", "title": "Ночная операция", "server": "VSG #2",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	event := decode[docstore.Event](t, rr)
	assert.Equal(t, int64(4), event.ID)
	assert.NotNil(t, event.TeamA)

	rr = h.do(t, http.MethodGet, "/api/schedule/week", "", nil)
	week := decode[[]docstore.DaySchedule](t, rr)
	require.Len(t, week, 7)
	assert.Len(t, week[6].Events, 1)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodDelete, "/api/schedule/4", admin, nil).Code)
	assert.Len(t, decode[[]docstore.Event](t, h.do(t, http.MethodGet, "/api/schedule", "", nil)), 3)
}

func TestRuleRoutes(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})
	admin := h.adminToken(t)

	rr := h.do(t, http.MethodPut, "/api/rules", admin, `[
		{"id":1,"title":"Одна жизнь","icon":"skull","description":"Без возрождений"},
		{"id":"rule_1738000000000","title":"Связь","icon":"headset","description":"Только по рации"}
	]`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, decode[[]docstore.Rule](t, rr), 2)

	rr = h.do(t, http.MethodPost, "/api/rules", admin, map[string]any{"title": "Маскировка", "description": "Камуфляж обязателен"})
	require.Equal(t, http.StatusCreated, rr.Code)
	id, ok := decode[docstore.Rule](t, rr).ID.Int()
	require.True(t, ok)
	assert.Equal(t, int64(2), id)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodDelete, "/api/rules/rule_1738000000000", admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/rules/rule_1738000000000", admin, nil).Code)
}

func TestTeamAndFaqRoutes(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})
	admin := h.adminToken(t)

	rr := h.do(t, http.MethodPost, "/api/teams", admin, map[string]any{"name": "Чарли", "type": "navy", "leader": "VSG_C"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_TEAM_TYPE", errorCode(t, rr))

	rr = h.do(t, http.MethodPost, "/api/teams", admin, map[string]any{"name": "Чарли", "type": "recon", "leader": "VSG_C", "maxSize": 6})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, int64(3), decode[docstore.Team](t, rr).ID)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodDelete, "/api/teams/3", admin, nil).Code)

	rr = h.do(t, http.MethodPost, "/api/teams", admin, map[string]any{"name": "Дельта"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	team := decode[docstore.Team](t, rr)
	assert.Empty(t, team.Leader)
	assert.Equal(t, docstore.TeamAssault, team.Type)
	assert.Equal(t, 12, team.MaxSize)

	rr = h.do(t, http.MethodPost, "/api/teams", admin, map[string]any{"leader": "VSG_C"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, map[string]any{"fields": []any{"name"}}, decode[map[string]any](t, rr)["details"])

	rr = h.do(t, http.MethodPost, "/api/faq", admin, map[string]any{"question": "Нужен микрофон?", "answer": "Да"})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, int64(3), decode[docstore.FAQEntry](t, rr).ID)
	assert.Len(t, decode[[]docstore.FAQEntry](t, h.do(t, http.MethodGet, "/api/faq", "", nil)), 3)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/faq/42", admin, nil).Code)
}

func TestUserRoutesRequireAdmin(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})
	admin := h.adminToken(t)
	player := h.guest(t).Token

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/api/users", player, nil).Code)

	rr := h.do(t, http.MethodPost, "/api/users", admin, map[string]any{"username": "VSG_Mod", "role": "moderator"})
	require.Equal(t, http.StatusCreated, rr.Code)
	user := decode[docstore.User](t, rr)
	assert.Equal(t, int64(3), user.ID)
	assert.False(t, user.Joined.IsZero())

	rr = h.do(t, http.MethodPost, "/api/users", admin, map[string]any{"username": "x", "role": "owner"})
	assert.Equal(t, "INVALID_ROLE", errorCode(t, rr))

	assert.Len(t, decode[[]docstore.User](t, h.do(t, http.MethodGet, "/api/users", admin, nil)), 3)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodDelete, "/api/users/3", admin, nil).Code)
}

func TestProfileRoutes(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})
	login := h.guest(t)
	own := "/api/profiles/" + login.UserID

	rr := h.do(t, http.MethodGet, own, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, login.Name, decode[docstore.Profile](t, rr).Username)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/profiles/99", "", nil).Code)

	rr = h.do(t, http.MethodPatch, own, login.Token, map[string]any{"rank": "Ветеран", "gamesPlayed": 12})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	profile := decode[docstore.Profile](t, rr)
	assert.Equal(t, "Ветеран", profile.Rank)
	assert.Equal(t, 12, profile.GamesPlayed)
	assert.Len(t, profile.Activities, 2)

	rr = h.do(t, http.MethodPatch, own, login.Token, map[string]any{"gamesPlayed": "many"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_PATCH", errorCode(t, rr))

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPatch, "/api/profiles/1", login.Token, map[string]any{"rank": "x"}).Code)

	rr = h.do(t, http.MethodPost, own+"/activities", login.Token, map[string]any{"type": "game", "title": "Победа", "description": "TVT"})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, int64(3), decode[docstore.Activity](t, rr).ID)

	rr = h.do(t, http.MethodPost, own+"/activities", login.Token, map[string]any{"type": "party", "title": "?"})
	assert.Equal(t, "INVALID_ACTIVITY_TYPE", errorCode(t, rr))

	admin := h.adminToken(t)
	rr = h.do(t, http.MethodPost, "/api/profiles", admin, map[string]any{"id": 40, "username": "VSG_Ghost"})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, int64(40), decode[docstore.Profile](t, rr).UserID)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPatch, "/api/profiles/40", admin, map[string]any{"rating": 1200}).Code)
}

func TestSettingsRoutes(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})
	admin := h.adminToken(t)

	rr := h.do(t, http.MethodGet, "/api/settings", "", nil)
	assert.Equal(t, docstore.DefaultSiteTitle, decode[map[string]any](t, rr)["siteTitle"])

	rr = h.do(t, http.MethodPatch, "/api/settings", admin, map[string]any{"newsLimit": 5, "darkMode": true})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	settings := decode[map[string]any](t, rr)
	assert.Equal(t, float64(5), settings["newsLimit"])
	assert.Equal(t, true, settings["darkMode"])

	rr = h.do(t, http.MethodPatch, "/api/settings", admin, map[string]any{"newsLimit": "ten"})
	assert.Equal(t, "INVALID_PATCH", errorCode(t, rr))
}

func TestExportRoutes(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})
	admin := h.adminToken(t)
	player := h.guest(t).Token

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/api/admin/export", player, nil).Code)

	rr := h.do(t, http.MethodGet, "/api/admin/export", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, docstore.ExportMimeType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "vsg_full_database_")
	assert.Contains(t, rr.Body.String(), `"news"`)

	rr = h.do(t, http.MethodGet, "/api/admin/export?format=xlsx", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")

	rr = h.do(t, http.MethodGet, "/api/admin/export?format=pdf", admin, nil)
	assert.Equal(t, "UNSUPPORTED_FORMAT", errorCode(t, rr))

	rr = h.do(t, http.MethodGet, "/api/admin/export?archive=true", admin, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestImportRoutes(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})
	admin := h.adminToken(t)

	rr := h.do(t, http.MethodPost, "/api/admin/import", admin,
		`{"news":[],"schedule":[],"rules":[],"faq":[],"users":[],"profiles":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "INVALID_FORMAT", body["code"])
	assert.Equal(t, map[string]any{"collection": "teams"}, body["details"])

	rr = h.do(t, http.MethodPost, "/api/admin/import", admin, `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_JSON", errorCode(t, rr))

	exported := h.do(t, http.MethodGet, "/api/admin/export", admin, nil).Body.Bytes()
	h.store.ClearAllNews(context.Background())
	rr = h.do(t, http.MethodPost, "/api/admin/import", admin, exported)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, h.store.GetAllNews(), 1)
}

func TestResetRoute(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})
	admin := h.adminToken(t)
	h.store.ClearAllNews(context.Background())

	rr := h.do(t, http.MethodPost, "/api/admin/reset", admin, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "CONFIRMATION_REQUIRED", errorCode(t, rr))
	assert.Empty(t, h.store.GetAllNews())

	rr = h.do(t, http.MethodPost, "/api/admin/reset", admin, map[string]any{"confirm": true})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, h.store.GetAllNews(), 1)
}

func TestSearchRoute(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{})

	rr := h.do(t, http.MethodGet, "/api/search?q=жизнь", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[search.Response](t, rr)
	assert.Equal(t, search.BackendScan, resp.Backend)
	assert.NotEmpty(t, resp.Results)

	rr = h.do(t, http.MethodGet, "/api/search?q=жизнь&type=faq", "", nil)
	for _, r := range decode[search.Response](t, rr).Results {
		assert.Equal(t, search.ResultFAQ, r.Type)
	}

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/search?q=x&limit=-1", "", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil, HTTPConfig{Metrics: metrics.New()})

	h.do(t, http.MethodGet, "/api/health", "", nil)
	rr := h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `vsg_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}
