package docstore

import (
	"context"
	"fmt"
)

const (
	NoviceRank    = "Новичок"
	InitialRating = 1000
)

func (s *Store) GetAllUsers() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUsers(s.tree.Users)
}

func (s *Store) GetUser(id int64) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.tree.Users {
		if u.ID == id {
			return cloneUser(u), true
		}
	}
	return User{}, false
}

// AddUser registers a user. Role defaults to user and Joined to now.
func (s *Store) AddUser(ctx context.Context, u User) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = nextID(s.tree.Users, func(u User) int64 { return u.ID })
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Joined.IsZero() {
		u.Joined = s.now().UTC()
	}
	u = cloneUser(u)
	s.tree.Users = append(s.tree.Users, u)
	s.persist(ctx)
	return cloneUser(u)
}

// DeleteUser removes the account only. The user's profile, if any, stays.
func (s *Store) DeleteUser(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.tree.Users, ok = removeFirst(s.tree.Users, func(u User) bool { return u.ID == id })
	if ok {
		s.persist(ctx)
	}
	return ok
}

func (s *Store) GetUserProfile(userID int64) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.profileIndex(userID)
	if i < 0 {
		return Profile{}, false
	}
	return cloneProfile(s.tree.Profiles[i]), true
}

func (s *Store) profileIndex(userID int64) int {
	for i, p := range s.tree.Profiles {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}

// CreateProfile appends a novice profile for u with a single registration activity.
// It does not check for an existing profile; lookups return the first match.
func (s *Store) CreateProfile(ctx context.Context, u User) Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	p := Profile{
		UserID:       u.ID,
		Username:     u.Username,
		DiscordID:    cloneStringPtr(u.DiscordID),
		Rank:         NoviceRank,
		Accuracy:     "0%",
		SurvivalRate: "0%",
		Rating:       InitialRating,
		Activities: []Activity{{
			ID:          1,
			Type:        ActivityRegistration,
			Title:       "Регистрация на сайте",
			Description: "Создан профиль игрока",
			Time:        now,
		}},
		Teams:     []string{},
		CreatedAt: now,
	}
	s.tree.Profiles = append(s.tree.Profiles, p)
	s.persist(ctx)
	return cloneProfile(p)
}

// UpdateProfile shallow-merges fields into the user's profile.
func (s *Store) UpdateProfile(ctx context.Context, userID int64, fields Fields) (Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.profileIndex(userID)
	if i < 0 {
		return Profile{}, false, nil
	}
	updated, err := mergeFields(s.tree.Profiles[i], fields)
	if err != nil {
		return Profile{}, true, fmt.Errorf("update profile %d: %w", userID, err)
	}
	updated.Activities = nonNil(updated.Activities)
	updated.Teams = nonNil(updated.Teams)
	s.tree.Profiles[i] = updated
	s.persist(ctx)
	return cloneProfile(updated), true, nil
}

// AddActivity prepends an activity stamped with the current time. Its id is the
// profile's activity count plus one, which matches previously exported data but
// can repeat an id after activities were removed by a profile update.
func (s *Store) AddActivity(ctx context.Context, userID int64, a Activity) (Activity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.profileIndex(userID)
	if i < 0 {
		return Activity{}, false
	}
	p := &s.tree.Profiles[i]
	a.ID = int64(len(p.Activities)) + 1
	a.Time = s.now().UTC()
	p.Activities = append([]Activity{a}, p.Activities...)
	s.persist(ctx)
	return a, true
}

func (s *Store) GetSettings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Settings.clone()
}

// UpdateSettings shallow-merges fields into the settings. Unknown keys are kept.
func (s *Store) UpdateSettings(ctx context.Context, fields Fields) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated, err := mergeFields(s.tree.Settings, fields)
	if err != nil {
		return Settings{}, fmt.Errorf("update settings: %w", err)
	}
	s.tree.Settings = updated
	s.persist(ctx)
	return updated.clone(), nil
}
