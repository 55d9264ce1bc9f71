package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vsg/api/internal/auth"
	"vsg/api/internal/config"
	"vsg/api/internal/docstore"
	"vsg/api/internal/export"
	"vsg/api/internal/rbac"
	"vsg/api/internal/search"
	"vsg/api/internal/slot"
)

const (
	guestLoginTitle       = "Тестовый вход"
	guestLoginDescription = "Авторизация через тестовый режим"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

// Dependencies are the collaborators built by the caller. Search and Export
// fall back to in-process implementations when nil.
type Dependencies struct {
	Store  *docstore.Store
	Search *search.Service
	Export *export.Service
	Slot   slot.Slot
	Guests *auth.GuestNames
	Logger *zap.Logger
}

// Service is the process-wide context object handed to every adapter.
type Service struct {
	secret   []byte
	tokenTTL time.Duration
	store    *docstore.Store
	search   *search.Service
	export   *export.Service
	slot     slot.Slot
	gate     *auth.Gate
	guests   *auth.GuestNames
	log      *zap.Logger
	now      func() time.Time
}

func New(cfg config.Config, deps Dependencies) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("app: store is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("app: jwt secret is empty")
	}
	gate, err := auth.NewGate(cfg.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("admin gate: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: cfg.TokenTTL,
		store:    deps.Store,
		search:   deps.Search,
		export:   deps.Export,
		slot:     deps.Slot,
		gate:     gate,
		guests:   deps.Guests,
		log:      logger.Named("app"),
		now:      time.Now,
	}
	if svc.tokenTTL <= 0 {
		svc.tokenTTL = 12 * time.Hour
	}
	if svc.search == nil {
		svc.search = search.NewService(nil, deps.Store, logger)
	}
	if svc.export == nil {
		svc.export = export.NewService(deps.Store, nil)
	}
	if svc.guests == nil {
		svc.guests = auth.NewGuestNames(0)
	}
	return svc, nil
}

func (s *Service) Store() *docstore.Store { return s.store }

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Ping reports whether the durable slot is reachable. Backends without a
// health check are always considered ready.
func (s *Service) Ping(ctx context.Context) error {
	pinger, ok := s.slot.(slot.Pinger)
	if !ok {
		return nil
	}
	return pinger.Ping(ctx)
}

// Sessions

func (s *Service) AdminLogin(password string) (Session, error) {
	if err := s.gate.Check(password); err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "WRONG_PASSWORD", "Неверный пароль", nil)
	}
	admin := s.store.Defaults().Admin
	return s.issueSession(strconv.FormatInt(admin.ID, 10), admin.Username, string(rbac.RoleAdmin))
}

// GuestLogin registers a throwaway player with a fresh profile, the stand-in
// for the third-party login flow.
func (s *Service) GuestLogin(ctx context.Context) (Session, docstore.Profile, error) {
	user := s.store.AddUser(ctx, docstore.User{
		Username: s.guests.Next(),
		Role:     docstore.RoleUser,
	})
	s.store.CreateProfile(ctx, user)
	s.store.AddActivity(ctx, user.ID, docstore.Activity{
		Type:        docstore.ActivityRegistration,
		Title:       guestLoginTitle,
		Description: guestLoginDescription,
	})
	profile, _ := s.store.GetUserProfile(user.ID)

	session, err := s.issueSession(strconv.FormatInt(user.ID, 10), user.Username, string(user.Role))
	if err != nil {
		return Session{}, docstore.Profile{}, err
	}
	return session, profile, nil
}

func (s *Service) issueSession(sub, name, role string) (Session, error) {
	expiresAt := s.now().Add(s.tokenTTL)
	jti := uuid.NewString()
	token, err := auth.IssueToken(s.secret, auth.Claims{
		Sub:  sub,
		Name: name,
		Role: role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    sub,
		UserName:  name,
		Role:      role,
		JTI:       jti,
		ExpiresAt: time.Unix(expiresAt.Unix(), 0),
	}, nil
}

func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken(s.secret, token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Role:      string(rbac.Normalize(claims.Role)),
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// News

func (s *Service) AddNews(ctx context.Context, n docstore.News) (docstore.News, error) {
	if strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Content) == "" {
		return docstore.News{}, missingFields("title", "content")
	}
	added := s.store.AddNews(ctx, n)
	s.search.IndexNews(added)
	return added, nil
}

func (s *Service) DeleteNews(ctx context.Context, id int64) error {
	if !s.store.DeleteNews(ctx, id) {
		return notFound("news", id)
	}
	s.search.DeleteNews(id)
	return nil
}

func (s *Service) ClearAllNews(ctx context.Context) {
	for _, n := range s.store.GetAllNews() {
		s.search.DeleteNews(n.ID)
	}
	s.store.ClearAllNews(ctx)
}

// Schedule

func (s *Service) AddSchedule(ctx context.Context, e docstore.Event) (docstore.Event, error) {
	if strings.TrimSpace(e.Day) == "" || strings.TrimSpace(e.Time) == "" || strings.TrimSpace(e.Title) == "" {
		return docstore.Event{}, missingFields("day", "time", "title")
	}
	return s.store.AddSchedule(ctx, e), nil
}

func (s *Service) DeleteSchedule(ctx context.Context, id int64) error {
	if !s.store.DeleteSchedule(ctx, id) {
		return notFound("schedule", id)
	}
	return nil
}

// Rules

func (s *Service) AddRule(ctx context.Context, r docstore.Rule) (docstore.Rule, error) {
	if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Description) == "" {
		return docstore.Rule{}, missingFields("title", "description")
	}
	added := s.store.AddRule(ctx, r)
	s.search.IndexRule(added)
	return added, nil
}

// SaveRules replaces the whole rule list. Rules dropped by the replacement
// stay in the index until they are filtered out of results.
func (s *Service) SaveRules(ctx context.Context, rules []docstore.Rule) []docstore.Rule {
	s.store.SaveRules(ctx, rules)
	saved := s.store.GetAllRules()
	for _, r := range saved {
		s.search.IndexRule(r)
	}
	return saved
}

func (s *Service) DeleteRule(ctx context.Context, id docstore.RuleID) error {
	if !s.store.DeleteRule(ctx, id) {
		return notFound("rule", id.String())
	}
	s.search.DeleteRule(id)
	return nil
}

// Teams

// defaultTeamMaxSize applies when a new team gives no positive maxSize.
const defaultTeamMaxSize = 12

// AddTeam needs only a name. Type defaults to assault, the first squad kind
// offered in the admin form; leader may stay empty.
func (s *Service) AddTeam(ctx context.Context, t docstore.Team) (docstore.Team, error) {
	if strings.TrimSpace(t.Name) == "" {
		return docstore.Team{}, missingFields("name")
	}
	if t.Type == "" {
		t.Type = docstore.TeamAssault
	}
	if t.MaxSize <= 0 {
		t.MaxSize = defaultTeamMaxSize
	}
	switch t.Type {
	case docstore.TeamAssault, docstore.TeamSupport, docstore.TeamRecon, docstore.TeamSniper:
	default:
		return docstore.Team{}, domainError(http.StatusBadRequest, "INVALID_TEAM_TYPE", "Unknown team type", map[string]any{"type": t.Type})
	}
	return s.store.AddTeam(ctx, t), nil
}

func (s *Service) DeleteTeam(ctx context.Context, id int64) error {
	if !s.store.DeleteTeam(ctx, id) {
		return notFound("team", id)
	}
	return nil
}

// FAQ

func (s *Service) AddFaq(ctx context.Context, f docstore.FAQEntry) (docstore.FAQEntry, error) {
	if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
		return docstore.FAQEntry{}, missingFields("question", "answer")
	}
	added := s.store.AddFaq(ctx, f)
	s.search.IndexFAQ(added)
	return added, nil
}

func (s *Service) DeleteFaq(ctx context.Context, id int64) error {
	if !s.store.DeleteFaq(ctx, id) {
		return notFound("faq", id)
	}
	s.search.DeleteFAQ(id)
	return nil
}

// Users and profiles

func (s *Service) AddUser(ctx context.Context, u docstore.User) (docstore.User, error) {
	if strings.TrimSpace(u.Username) == "" {
		return docstore.User{}, missingFields("username")
	}
	switch u.Role {
	case "", docstore.RoleAdmin, docstore.RoleModerator, docstore.RoleUser:
	default:
		return docstore.User{}, domainError(http.StatusBadRequest, "INVALID_ROLE", "Unknown role", map[string]any{"role": u.Role})
	}
	return s.store.AddUser(ctx, u), nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if !s.store.DeleteUser(ctx, id) {
		return notFound("user", id)
	}
	return nil
}

func (s *Service) GetUserProfile(userID int64) (docstore.Profile, error) {
	profile, ok := s.store.GetUserProfile(userID)
	if !ok {
		return docstore.Profile{}, notFound("profile", userID)
	}
	return profile, nil
}

func (s *Service) CreateProfile(ctx context.Context, u docstore.User) (docstore.Profile, error) {
	if u.ID == 0 || strings.TrimSpace(u.Username) == "" {
		return docstore.Profile{}, missingFields("id", "username")
	}
	return s.store.CreateProfile(ctx, u), nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, fields docstore.Fields) (docstore.Profile, error) {
	profile, ok, err := s.store.UpdateProfile(ctx, userID, fields)
	if err != nil {
		return docstore.Profile{}, err
	}
	if !ok {
		return docstore.Profile{}, notFound("profile", userID)
	}
	return profile, nil
}

func (s *Service) AddActivity(ctx context.Context, userID int64, a docstore.Activity) (docstore.Activity, error) {
	if strings.TrimSpace(a.Title) == "" {
		return docstore.Activity{}, missingFields("title")
	}
	switch a.Type {
	case docstore.ActivityGame, docstore.ActivityAchievement, docstore.ActivityRegistration, docstore.ActivityTeam, docstore.ActivityEvent:
	default:
		return docstore.Activity{}, domainError(http.StatusBadRequest, "INVALID_ACTIVITY_TYPE", "Unknown activity type", map[string]any{"type": a.Type})
	}
	added, ok := s.store.AddActivity(ctx, userID, a)
	if !ok {
		return docstore.Activity{}, notFound("profile", userID)
	}
	return added, nil
}

// Admin

func (s *Service) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	return s.export.Export(ctx, req)
}

func (s *Service) Import(ctx context.Context, payload []byte) error {
	if err := s.store.ImportFullDatabase(ctx, payload); err != nil {
		return err
	}
	s.search.ReindexAll()
	return nil
}

func (s *Service) Reset(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return domainError(http.StatusBadRequest, "CONFIRMATION_REQUIRED", "Reset must be confirmed", nil)
	}
	s.store.ResetDatabase(ctx)
	s.search.ReindexAll()
	s.log.Info("document reset")
	return nil
}

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

func missingFields(fields ...string) error {
	return domainError(http.StatusBadRequest, "MISSING_FIELDS", "Заполните все обязательные поля", map[string]any{"fields": fields})
}

func notFound(kind string, id any) error {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", map[string]any{"kind": kind, "id": id})
}
