package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vsg/api/internal/auth"
	"vsg/api/internal/docstore"
	"vsg/api/internal/export"
	"vsg/api/internal/metrics"
	"vsg/api/internal/rbac"
	"vsg/api/internal/search"
)

const maxImportBytes = 16 << 20

type HTTPConfig struct {
	CORSOrigin         string
	LoginRatePerMinute int
	Metrics            *metrics.Metrics
	Logger             *zap.Logger
}

type HTTPServer struct {
	service    *Service
	corsOrigin string
	metrics    *metrics.Metrics
	limiter    *IPRateLimiter
	log        *zap.Logger

	guestLimiter *IPRateLimiter
}

func NewHTTPServer(service *Service, cfg HTTPConfig) *HTTPServer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	s := &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		metrics:    cfg.Metrics,
		log:        logger.Named("http"),
	}
	if cfg.LoginRatePerMinute > 0 {
		s.limiter = NewIPRateLimiter(perMinute(cfg.LoginRatePerMinute), cfg.LoginRatePerMinute)
		s.guestLimiter = NewIPRateLimiter(perMinute(cfg.LoginRatePerMinute), cfg.LoginRatePerMinute)
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRequestID, s.withCORS, s.withAccessLog)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/api/ready", s.handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", s.handleSession)
		r.With(s.withLoginLimit).Post("/admin", s.handleAdminLogin)
		r.With(s.withGuestLimit).Post("/guest", s.handleGuestLogin)
	})

	r.Route("/api/news", func(r chi.Router) {
		r.Get("/", s.handleListNews)
		r.With(s.require(rbac.ActionModerate)).Post("/", s.handleAddNews)
		r.With(s.require(rbac.ActionModerate)).Delete("/", s.handleClearNews)
		r.With(s.require(rbac.ActionModerate)).Delete("/{id}", s.handleDeleteNews)
	})

	r.Route("/api/schedule", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.service.Store().GetAllSchedule())
		})
		r.Get("/week", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.service.Store().WeekSchedule())
		})
		r.With(s.require(rbac.ActionModerate)).Post("/", s.handleAddSchedule)
		r.With(s.require(rbac.ActionModerate)).Delete("/{id}", s.handleDeleteSchedule)
	})

	r.Route("/api/rules", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.service.Store().GetAllRules())
		})
		r.With(s.require(rbac.ActionModerate)).Post("/", s.handleAddRule)
		r.With(s.require(rbac.ActionModerate)).Put("/", s.handleSaveRules)
		r.With(s.require(rbac.ActionModerate)).Delete("/{id}", s.handleDeleteRule)
	})

	r.Route("/api/teams", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.service.Store().GetAllTeams())
		})
		r.With(s.require(rbac.ActionModerate)).Post("/", s.handleAddTeam)
		r.With(s.require(rbac.ActionModerate)).Delete("/{id}", s.handleDeleteTeam)
	})

	r.Route("/api/faq", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.service.Store().GetAllFaq())
		})
		r.With(s.require(rbac.ActionModerate)).Post("/", s.handleAddFaq)
		r.With(s.require(rbac.ActionModerate)).Delete("/{id}", s.handleDeleteFaq)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(s.require(rbac.ActionConfigure))
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.service.Store().GetAllUsers())
		})
		r.Post("/", s.handleAddUser)
		r.Delete("/{id}", s.handleDeleteUser)
	})

	r.Route("/api/profiles", func(r chi.Router) {
		r.Get("/{userId}", s.handleGetProfile)
		r.With(s.require(rbac.ActionConfigure)).Post("/", s.handleCreateProfile)
		r.With(s.require(rbac.ActionProfile)).Patch("/{userId}", s.handleUpdateProfile)
		r.With(s.require(rbac.ActionProfile)).Post("/{userId}/activities", s.handleAddActivity)
	})

	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.service.Store().GetSettings())
		})
		r.With(s.require(rbac.ActionConfigure)).Patch("/", s.handleUpdateSettings)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.require(rbac.ActionAdmin))
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
		r.Post("/reset", s.handleReset)
	})

	r.Get("/api/search", s.handleSearch)

	return r
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"storage": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["storage"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// Sessions

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"userName":      session.UserName,
		"userId":        session.UserID,
		"role":          session.Role,
	})
}

func (s *HTTPServer) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.Password == "" {
		s.fail(w, r, missingFields("password"))
		return
	}
	session, err := s.service.AdminLogin(body.Password)
	if err != nil {
		s.log.Warn("admin login rejected", zap.String("remote", clientIP(r)))
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleGuestLogin(w http.ResponseWriter, r *http.Request) {
	session, profile, err := s.service.GuestLogin(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	payload := sessionPayload(session)
	payload["profile"] = profile
	writeJSON(w, http.StatusOK, payload)
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"token":     session.Token,
		"userName":  session.UserName,
		"userId":    session.UserID,
		"role":      session.Role,
		"expiresAt": session.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// News

func (s *HTTPServer) handleListNews(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		writeJSON(w, http.StatusOK, s.service.Store().GetAllNews())
		return
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "limit must be an integer", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Store().GetRecentNews(limit))
}

func (s *HTTPServer) handleAddNews(w http.ResponseWriter, r *http.Request) {
	var body docstore.News
	if !s.decode(w, r, &body) {
		return
	}
	added, err := s.service.AddNews(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *HTTPServer) handleClearNews(w http.ResponseWriter, r *http.Request) {
	s.service.ClearAllNews(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleDeleteNews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.service.DeleteNews(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Schedule

func (s *HTTPServer) handleAddSchedule(w http.ResponseWriter, r *http.Request) {
	var body docstore.Event
	if !s.decode(w, r, &body) {
		return
	}
	added, err := s.service.AddSchedule(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *HTTPServer) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.service.DeleteSchedule(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Rules

func (s *HTTPServer) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var body docstore.Rule
	if !s.decode(w, r, &body) {
		return
	}
	added, err := s.service.AddRule(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *HTTPServer) handleSaveRules(w http.ResponseWriter, r *http.Request) {
	var body []docstore.Rule
	if !s.decode(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, s.service.SaveRules(r.Context(), body))
}

func (s *HTTPServer) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := docstore.ParseRuleID(chi.URLParam(r, "id"))
	if err := s.service.DeleteRule(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Teams

func (s *HTTPServer) handleAddTeam(w http.ResponseWriter, r *http.Request) {
	var body docstore.Team
	if !s.decode(w, r, &body) {
		return
	}
	added, err := s.service.AddTeam(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *HTTPServer) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.service.DeleteTeam(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// FAQ

func (s *HTTPServer) handleAddFaq(w http.ResponseWriter, r *http.Request) {
	var body docstore.FAQEntry
	if !s.decode(w, r, &body) {
		return
	}
	added, err := s.service.AddFaq(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *HTTPServer) handleDeleteFaq(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.service.DeleteFaq(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Users and profiles

func (s *HTTPServer) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var body docstore.User
	if !s.decode(w, r, &body) {
		return
	}
	added, err := s.service.AddUser(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.service.DeleteUser(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	profile, err := s.service.GetUserProfile(userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var body docstore.User
	if !s.decode(w, r, &body) {
		return
	}
	profile, err := s.service.CreateProfile(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.ownProfile(w, r)
	if !ok {
		return
	}
	var body docstore.Fields
	if !s.decode(w, r, &body) {
		return
	}
	profile, err := s.service.UpdateProfile(r.Context(), userID, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleAddActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.ownProfile(w, r)
	if !ok {
		return
	}
	var body docstore.Activity
	if !s.decode(w, r, &body) {
		return
	}
	added, err := s.service.AddActivity(r.Context(), userID, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// ownProfile resolves the {userId} parameter and lets players touch only their
// own profile unless they may moderate.
func (s *HTTPServer) ownProfile(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return 0, false
	}
	session := sessionFrom(r.Context())
	if session.UserID != strconv.FormatInt(userID, 10) && !s.service.Can(session.Role, rbac.ActionModerate) {
		s.forbid(w, r, session, string(rbac.ActionModerate))
		return 0, false
	}
	return userID, true
}

// Settings

func (s *HTTPServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body docstore.Fields
	if !s.decode(w, r, &body) {
		return
	}
	settings, err := s.service.Store().UpdateSettings(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Admin

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	format := export.Format(strings.ToLower(r.URL.Query().Get("format")))
	if format == "" {
		format = export.FormatJSON
	}
	archive, _ := strconv.ParseBool(r.URL.Query().Get("archive"))
	result, err := s.service.Export(r.Context(), export.Request{Format: format, Archive: archive})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	if result.ArchiveKey != "" {
		w.Header().Set("X-Archive-Key", result.ArchiveKey)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Import file is too large", nil)
		return
	}
	if err := s.service.Import(r.Context(), payload); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Confirm bool `json:"confirm"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.service.Reset(r.Context(), body.Confirm); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := search.Query{
		Text:       query.Get("q"),
		FilterType: search.ResultType(query.Get("type")),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "limit must be a non-negative integer", nil)
			return
		}
		q.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "offset must be a non-negative integer", nil)
			return
		}
		q.Offset = offset
	}
	writeJSON(w, http.StatusOK, s.service.Search(q))
}

// Helpers

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err))
	}
	writeError(w, status, code, message, details)
}

// forbid writes a 403 Forbidden response and logs the denial
func (s *HTTPServer) forbid(w http.ResponseWriter, r *http.Request, session Session, action string) {
	s.log.Info("forbidden",
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.String("user_id", session.UserID),
		zap.String("role", session.Role),
		zap.String("action", action))
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid id", map[string]any{"param": name})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var formatErr *docstore.FormatError
	if errors.As(err, &formatErr) {
		return http.StatusUnprocessableEntity, "INVALID_FORMAT", "Неверный формат файла", map[string]any{"collection": formatErr.Collection}
	}
	switch {
	case errors.Is(err, docstore.ErrInvalidDocument):
		return http.StatusBadRequest, "INVALID_JSON", "Import file is not a JSON object", nil
	case errors.Is(err, docstore.ErrInvalidPatch):
		return http.StatusBadRequest, "INVALID_PATCH", err.Error(), nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Unsupported export format", nil
	case errors.Is(err, export.ErrArchiveUnavailable):
		return http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Export archive is not configured", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
