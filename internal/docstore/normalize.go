package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// DefaultSiteTitle names the portal when no title is configured.
const DefaultSiteTitle = "VECTOR SERIOUS GAMES"

var errNotObject = errors.New("not an object")

// Defaults are substituted for a missing users list or settings record.
type Defaults struct {
	Admin    User
	Settings Settings
}

// DefaultsFor returns the stock administrator and settings for a site.
func DefaultsFor(siteTitle string, joined time.Time) Defaults {
	if siteTitle == "" {
		siteTitle = DefaultSiteTitle
	}
	return Defaults{
		Admin: User{
			ID:       1,
			Username: "VSG_Admin",
			Role:     RoleAdmin,
			Joined:   joined,
		},
		Settings: Settings{SiteTitle: siteTitle},
	}
}

// ParsePayload splits a JSON document into its top-level members.
func ParsePayload(data []byte) (map[string]json.RawMessage, error) {
	if kindOf(data) != '{' {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, errNotObject)
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return payload, nil
}

// Normalize shapes an arbitrary payload into a Tree. Collections that are
// missing or not lists become empty and unknown top-level keys pass through
// untouched. No element is ever dropped: a value that does not fit its field is
// coerced when that is lossless and otherwise kept verbatim, and each such
// element is reported.
func Normalize(payload map[string]json.RawMessage, d Defaults) (Tree, []error) {
	var issues []error
	t := Tree{
		News:     decodeList[News](payload, "news", &issues),
		Schedule: decodeList[Event](payload, "schedule", &issues),
		Rules:    decodeList[Rule](payload, "rules", &issues),
		Teams:    decodeList[Team](payload, "teams", &issues),
		FAQ:      decodeList[FAQEntry](payload, "faq", &issues),
		Profiles: decodeList[Profile](payload, "profiles", &issues),
	}

	if kindOf(payload["users"]) == '[' {
		t.Users = decodeList[User](payload, "users", &issues)
	} else {
		t.Users = []User{cloneUser(d.Admin)}
	}

	t.Settings = d.Settings.clone()
	if raw := payload[keySettings]; kindOf(raw) == '{' {
		var s Settings
		if err := json.Unmarshal(raw, &s); err != nil {
			issues = append(issues, &RecordError{Collection: keySettings, Index: -1, Err: err})
		} else {
			t.Settings = s
		}
	}

	if raw, ok := payload[keyLastUpdate]; ok {
		var ts time.Time
		if err := json.Unmarshal(raw, &ts); err == nil {
			t.LastUpdate = ts
		}
	}

	for k, v := range payload {
		if isKnownKey(k) {
			continue
		}
		if t.Extra == nil {
			t.Extra = make(map[string]json.RawMessage)
		}
		t.Extra[k] = append(json.RawMessage(nil), v...)
	}

	fillLists(&t)
	return t, issues
}

// fillLists makes nested lists non-nil so they encode as [] rather than null.
func fillLists(t *Tree) {
	for i := range t.Schedule {
		t.Schedule[i].TeamA = nonNil(t.Schedule[i].TeamA)
		t.Schedule[i].TeamB = nonNil(t.Schedule[i].TeamB)
	}
	for i := range t.Profiles {
		t.Profiles[i].Activities = nonNil(t.Profiles[i].Activities)
		t.Profiles[i].Teams = nonNil(t.Profiles[i].Teams)
	}
}

func decodeList[T any](payload map[string]json.RawMessage, name string, issues *[]error) []T {
	out := []T{}
	raw := payload[name]
	if kindOf(raw) != '[' {
		return out
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		*issues = append(*issues, &RecordError{Collection: name, Index: -1, Err: err})
		return out
	}
	for i, elem := range elems {
		var v T
		if err := json.Unmarshal(elem, &v); err != nil {
			*issues = append(*issues, &RecordError{Collection: name, Index: i, Err: err})
			if r, ok := any(&v).(keeper); ok {
				*r.leftover() = Leftover{Raw: cloneRaw(elem)}
			}
			out = append(out, v)
			continue
		}
		if r, ok := any(&v).(keeper); ok {
			lo := r.leftover()
			switch {
			case lo.Raw != nil:
				*issues = append(*issues, &RecordError{Collection: name, Index: i, Err: errNotObject})
			case len(lo.Extra) > 0:
				if unfit := unfitFields(reflect.TypeOf(v), lo); len(unfit) > 0 {
					err := fmt.Errorf("%w: %s", errUnfitFields, strings.Join(unfit, ", "))
					*issues = append(*issues, &RecordError{Collection: name, Index: i, Err: err})
				}
			}
		}
		out = append(out, v)
	}
	return out
}

// keeper is a record that can carry what its fields could not hold.
type keeper interface{ leftover() *Leftover }

func isKnownKey(k string) bool {
	if k == keySettings || k == keyLastUpdate {
		return true
	}
	for _, name := range RequiredCollections {
		if k == name {
			return true
		}
	}
	return false
}

// kindOf returns the first significant byte of a JSON value, or 0 when empty.
func kindOf(raw []byte) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}
