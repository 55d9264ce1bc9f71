package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// RuleID is either an integer or an opaque string token such as "rule_1738000000000".
// It is written back in the same JSON kind it was read in.
type RuleID struct {
	num   int64
	token string
}

func IntRuleID(n int64) RuleID { return RuleID{num: n} }

func TokenRuleID(token string) RuleID { return RuleID{token: token} }

// ParseRuleID reads a path or form value: digits become an integer id.
func ParseRuleID(s string) RuleID {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntRuleID(n)
	}
	return TokenRuleID(s)
}

// Int returns the numeric id and whether the id is numeric.
func (id RuleID) Int() (int64, bool) {
	return id.num, id.token == ""
}

func (id RuleID) IsZero() bool { return id.num == 0 && id.token == "" }

func (id RuleID) String() string {
	if id.token != "" {
		return id.token
	}
	return strconv.FormatInt(id.num, 10)
}

// Matches compares ids by their string form, so 3 matches "3" from a URL path.
func (id RuleID) Matches(other RuleID) bool {
	return id.String() == other.String()
}

func (id RuleID) MarshalJSON() ([]byte, error) {
	if id.token != "" {
		return json.Marshal(id.token)
	}
	return []byte(strconv.FormatInt(id.num, 10)), nil
}

func (id *RuleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var token string
		if err := json.Unmarshal(data, &token); err != nil {
			return err
		}
		*id = TokenRuleID(token)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("rule id: %w", err)
	}
	*id = IntRuleID(n)
	return nil
}

func (id *RuleID) UnmarshalYAML(value *yaml.Node) error {
	if value.ShortTag() == "!!int" {
		n, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("rule id: %w", err)
		}
		*id = IntRuleID(n)
		return nil
	}
	*id = TokenRuleID(value.Value)
	return nil
}

func (id RuleID) Equal(other RuleID) bool { return id == other }
