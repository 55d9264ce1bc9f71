package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Leftover keeps whatever part of a stored record its typed fields could not
// hold, so a record with a stray type or an unknown key is written back as it
// was read instead of being lost.
type Leftover struct {
	// Extra holds members that are unknown or did not fit their field.
	Extra map[string]json.RawMessage
	// Raw holds a collection element that was not an object at all.
	Raw json.RawMessage
}

func (l *Leftover) leftover() *Leftover { return l }

func (l Leftover) clone() Leftover {
	return Leftover{Extra: cloneMembers(l.Extra), Raw: cloneRaw(l.Raw)}
}

var errUnfitFields = errors.New("fields kept verbatim")

// unfitFields lists the known members of a record that were kept raw.
func unfitFields(t reflect.Type, lo *Leftover) []string {
	fields := jsonFields(t)
	var out []string
	for name := range lo.Extra {
		if _, ok := fields[name]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

var fieldCache sync.Map // reflect.Type -> map[string]int

// jsonFields maps each JSON member name of struct type t to its field index.
func jsonFields(t reflect.Type) map[string]int {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string]int)
	}
	fields := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fields[name] = i
	}
	fieldCache.Store(t, fields)
	return fields
}

// decodeRecord fills the struct dst points to member by member. A member whose
// value cannot be coerced to its field's type is returned in the leftover
// instead of failing the whole record.
func decodeRecord(data []byte, dst any) (Leftover, error) {
	if kindOf(data) != '{' {
		return Leftover{Raw: cloneRaw(bytes.TrimSpace(data))}, nil
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return Leftover{}, err
	}
	v := reflect.ValueOf(dst).Elem()
	fields := jsonFields(v.Type())
	var lo Leftover
	for name, raw := range members {
		if i, ok := fields[name]; ok && decodeField(raw, v.Field(i)) {
			continue
		}
		if lo.Extra == nil {
			lo.Extra = make(map[string]json.RawMessage)
		}
		lo.Extra[name] = cloneRaw(raw)
	}
	return lo, nil
}

func decodeField(raw json.RawMessage, fv reflect.Value) bool {
	if v, ok := decodeAs(raw, fv.Type()); ok {
		fv.Set(v)
		return true
	}
	fixed, ok := coerce(raw, fv.Type())
	if !ok {
		return false
	}
	v, ok := decodeAs(fixed, fv.Type())
	if ok {
		fv.Set(v)
	}
	return ok
}

func decodeAs(raw json.RawMessage, t reflect.Type) (reflect.Value, bool) {
	ptr := reflect.New(t)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, false
	}
	return ptr.Elem(), true
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	ruleIDType = reflect.TypeOf(RuleID{})
)

// coerce rewrites a scalar of the wrong JSON type into one t accepts, the way
// a loosely typed client would have meant it: "8" for 8, 8 for "8", "true"
// for true. It reports false when no faithful rewrite exists.
func coerce(raw json.RawMessage, t reflect.Type) (json.RawMessage, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case t == timeType:
		return coerceTime(raw)
	case t == ruleIDType:
		return coerceInt(raw)
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return coerceInt(raw)
	case reflect.Float32, reflect.Float64:
		text, ok := numericText(raw)
		if !ok {
			return nil, false
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, false
		}
		return json.RawMessage(strconv.FormatFloat(f, 'g', -1, 64)), true
	case reflect.String:
		switch k := kindOf(raw); {
		case k == '-' || (k >= '0' && k <= '9'), k == 't', k == 'f':
			out, err := json.Marshal(string(bytes.TrimSpace(raw)))
			return out, err == nil
		}
	case reflect.Bool:
		if kindOf(raw) != '"' {
			return nil, false
		}
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil, false
		}
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, false
		}
		return json.RawMessage(strconv.FormatBool(b)), true
	case reflect.Slice:
		return coerceElems(raw, t.Elem())
	}
	return nil, false
}

func coerceInt(raw json.RawMessage) (json.RawMessage, bool) {
	text, ok := numericText(raw)
	if !ok {
		return nil, false
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return json.RawMessage(strconv.FormatInt(n, 10)), true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return nil, false
	}
	return json.RawMessage(strconv.FormatInt(int64(f), 10)), true
}

// numericText returns the number a JSON number or numeric string spells.
func numericText(raw json.RawMessage) (string, bool) {
	switch k := kindOf(raw); {
	case k == '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	case k == '-' || (k >= '0' && k <= '9'):
		return string(bytes.TrimSpace(raw)), true
	}
	return "", false
}

var looseTimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", dateLayout}

func coerceTime(raw json.RawMessage) (json.RawMessage, bool) {
	var at time.Time
	switch k := kindOf(raw); {
	case k == '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil, false
		}
		for _, layout := range looseTimeLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				at = t
				break
			}
		}
	case k == '-' || (k >= '0' && k <= '9'):
		ms, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
		if err != nil {
			return nil, false
		}
		at = time.UnixMilli(ms)
	}
	if at.IsZero() {
		return nil, false
	}
	out, err := json.Marshal(at.UTC())
	return out, err == nil
}

func coerceElems(raw json.RawMessage, elem reflect.Type) (json.RawMessage, bool) {
	if kindOf(raw) != '[' {
		return nil, false
	}
	var elems []json.RawMessage
	if json.Unmarshal(raw, &elems) != nil {
		return nil, false
	}
	for i, e := range elems {
		if _, ok := decodeAs(e, elem); ok {
			continue
		}
		fixed, ok := coerce(e, elem)
		if !ok {
			return nil, false
		}
		elems[i] = fixed
	}
	out, err := json.Marshal(elems)
	return out, err == nil
}

// encodeRecord marshals src and writes the leftover back over it. A kept
// member replaces a known field only while that field is still zero, so a
// value set since the record was read always wins.
func encodeRecord(src any, lo Leftover) ([]byte, error) {
	if lo.Raw != nil {
		return cloneRaw(lo.Raw), nil
	}
	data, err := json.Marshal(src)
	if err != nil || len(lo.Extra) == 0 {
		return data, err
	}
	v := reflect.ValueOf(src)
	fields := jsonFields(v.Type())

	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := make(map[string]bool, len(lo.Extra))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if kept, ok := lo.Extra[key]; ok {
			written[key] = true
			if i, known := fields[key]; !known || v.Field(i).IsZero() {
				value = kept
			}
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, key, value); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(lo.Extra))
	for k := range lo.Extra {
		if !written[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, k, lo.Extra[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// checkField reports whether raw decodes strictly into the field of T named
// key. Unknown keys always pass.
func checkField(t reflect.Type, key string, raw json.RawMessage) error {
	i, ok := jsonFields(t)[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(raw, reflect.New(t.Field(i).Type).Interface())
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneMembers(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = cloneRaw(v)
	}
	return out
}

type (
	newsFields     News
	eventFields    Event
	ruleFields     Rule
	teamFields     Team
	faqFields      FAQEntry
	userFields     User
	profileFields  Profile
	activityFields Activity
)

func (n News) MarshalJSON() ([]byte, error) { return encodeRecord(newsFields(n), n.Leftover) }

func (n *News) UnmarshalJSON(data []byte) error {
	var f newsFields
	lo, err := decodeRecord(data, &f)
	if err != nil {
		return fmt.Errorf("news: %w", err)
	}
	*n = News(f)
	n.Leftover = lo
	return nil
}

func (e Event) MarshalJSON() ([]byte, error) { return encodeRecord(eventFields(e), e.Leftover) }

func (e *Event) UnmarshalJSON(data []byte) error {
	var f eventFields
	lo, err := decodeRecord(data, &f)
	if err != nil {
		return fmt.Errorf("event: %w", err)
	}
	*e = Event(f)
	e.Leftover = lo
	return nil
}

func (r Rule) MarshalJSON() ([]byte, error) { return encodeRecord(ruleFields(r), r.Leftover) }

func (r *Rule) UnmarshalJSON(data []byte) error {
	var f ruleFields
	lo, err := decodeRecord(data, &f)
	if err != nil {
		return fmt.Errorf("rule: %w", err)
	}
	*r = Rule(f)
	r.Leftover = lo
	return nil
}

func (t Team) MarshalJSON() ([]byte, error) { return encodeRecord(teamFields(t), t.Leftover) }

func (t *Team) UnmarshalJSON(data []byte) error {
	var f teamFields
	lo, err := decodeRecord(data, &f)
	if err != nil {
		return fmt.Errorf("team: %w", err)
	}
	*t = Team(f)
	t.Leftover = lo
	return nil
}

func (f FAQEntry) MarshalJSON() ([]byte, error) { return encodeRecord(faqFields(f), f.Leftover) }

func (f *FAQEntry) UnmarshalJSON(data []byte) error {
	var fields faqFields
	lo, err := decodeRecord(data, &fields)
	if err != nil {
		return fmt.Errorf("faq: %w", err)
	}
	*f = FAQEntry(fields)
	f.Leftover = lo
	return nil
}

func (u User) MarshalJSON() ([]byte, error) { return encodeRecord(userFields(u), u.Leftover) }

func (u *User) UnmarshalJSON(data []byte) error {
	var f userFields
	lo, err := decodeRecord(data, &f)
	if err != nil {
		return fmt.Errorf("user: %w", err)
	}
	*u = User(f)
	u.Leftover = lo
	return nil
}

func (p Profile) MarshalJSON() ([]byte, error) { return encodeRecord(profileFields(p), p.Leftover) }

func (p *Profile) UnmarshalJSON(data []byte) error {
	var f profileFields
	lo, err := decodeRecord(data, &f)
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	*p = Profile(f)
	p.Leftover = lo
	return nil
}

func (a Activity) MarshalJSON() ([]byte, error) {
	return encodeRecord(activityFields(a), a.Leftover)
}

func (a *Activity) UnmarshalJSON(data []byte) error {
	var f activityFields
	lo, err := decodeRecord(data, &f)
	if err != nil {
		return fmt.Errorf("activity: %w", err)
	}
	*a = Activity(f)
	a.Leftover = lo
	return nil
}
