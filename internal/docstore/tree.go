package docstore

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// RequiredCollections are the list-valued keys every document must carry, in validation order.
var RequiredCollections = []string{"news", "schedule", "rules", "teams", "faq", "users", "profiles"}

const (
	keySettings   = "settings"
	keyLastUpdate = "lastUpdate"
)

// Tree is the whole persisted document. Unknown top-level keys survive in Extra.
type Tree struct {
	News       []News
	Schedule   []Event
	Rules      []Rule
	Teams      []Team
	FAQ        []FAQEntry
	Users      []User
	Profiles   []Profile
	Settings   Settings
	LastUpdate time.Time

	Extra map[string]json.RawMessage
}

// MarshalJSON writes the known keys in a fixed order, then extras sorted by name.
func (t Tree) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	fields := []member{
		{"news", nonNil(t.News)},
		{"schedule", nonNil(t.Schedule)},
		{"rules", nonNil(t.Rules)},
		{"teams", nonNil(t.Teams)},
		{"faq", nonNil(t.FAQ)},
		{"users", nonNil(t.Users)},
		{"profiles", nonNil(t.Profiles)},
		{keySettings, t.Settings},
	}
	if !t.LastUpdate.IsZero() {
		fields = append(fields, member{keyLastUpdate, t.LastUpdate})
	}
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, f.key, f.value); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(t.Extra))
	for k := range t.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteByte(',')
		if err := writeMember(&buf, k, t.Extra[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type member struct {
	key   string
	value any
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// Clone returns a deep copy that shares no slices or maps with t.
func (t Tree) Clone() Tree {
	out := Tree{
		News:       cloneNews(t.News),
		Schedule:   cloneEvents(t.Schedule),
		Rules:      cloneRules(t.Rules),
		Teams:      cloneTeams(t.Teams),
		FAQ:        cloneFAQ(t.FAQ),
		Users:      cloneUsers(t.Users),
		Profiles:   cloneProfiles(t.Profiles),
		Settings:   t.Settings.clone(),
		LastUpdate: t.LastUpdate,
	}
	out.Extra = cloneMembers(t.Extra)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

func cloneNews(in []News) []News {
	out := make([]News, len(in))
	for i, n := range in {
		n.Tags = cloneStrings(n.Tags)
		n.Leftover = n.Leftover.clone()
		out[i] = n
	}
	return out
}

func cloneEvents(in []Event) []Event {
	out := make([]Event, len(in))
	for i, e := range in {
		e.TeamA = cloneStrings(e.TeamA)
		e.TeamB = cloneStrings(e.TeamB)
		e.Participants = cloneStrings(e.Participants)
		e.Leftover = e.Leftover.clone()
		out[i] = e
	}
	return out
}

func cloneRules(in []Rule) []Rule {
	out := make([]Rule, len(in))
	for i, r := range in {
		r.Leftover = r.Leftover.clone()
		out[i] = r
	}
	return out
}

func cloneTeams(in []Team) []Team {
	out := make([]Team, len(in))
	for i, t := range in {
		t.Members = cloneStrings(t.Members)
		t.Leftover = t.Leftover.clone()
		out[i] = t
	}
	return out
}

func cloneFAQ(in []FAQEntry) []FAQEntry {
	out := make([]FAQEntry, len(in))
	for i, f := range in {
		if f.Order != nil {
			v := *f.Order
			f.Order = &v
		}
		f.Leftover = f.Leftover.clone()
		out[i] = f
	}
	return out
}

func cloneUsers(in []User) []User {
	out := make([]User, len(in))
	for i, u := range in {
		out[i] = cloneUser(u)
	}
	return out
}

func cloneUser(u User) User {
	u.DiscordID = cloneStringPtr(u.DiscordID)
	u.Leftover = u.Leftover.clone()
	return u
}

func cloneProfiles(in []Profile) []Profile {
	out := make([]Profile, len(in))
	for i, p := range in {
		out[i] = cloneProfile(p)
	}
	return out
}

func cloneProfile(p Profile) Profile {
	p.DiscordID = cloneStringPtr(p.DiscordID)
	p.Activities = cloneActivities(p.Activities)
	p.Teams = append([]string{}, p.Teams...)
	p.Leftover = p.Leftover.clone()
	return p
}

func cloneActivities(in []Activity) []Activity {
	out := make([]Activity, len(in))
	for i, a := range in {
		a.Leftover = a.Leftover.clone()
		out[i] = a
	}
	return out
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
