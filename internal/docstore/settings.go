package docstore

import (
	"encoding/json"
	"time"
)

// Settings is the singleton site configuration. Keys the portal does not know
// about, and known keys holding a value of the wrong type, are kept in Extra
// and written back unchanged.
type Settings struct {
	SiteTitle           string     `json:"siteTitle"`
	DiscordWebhook      string     `json:"discordWebhook"`
	DiscordServerID     string     `json:"discordServerId"`
	NewsLimit           *int       `json:"newsLimit,omitempty"`
	AdminEmail          *string    `json:"adminEmail,omitempty"`
	MaintenanceMode     *bool      `json:"maintenanceMode,omitempty"`
	RegistrationEnabled *bool      `json:"registrationEnabled,omitempty"`
	EmailVerification   *bool      `json:"emailVerification,omitempty"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// settingsFields is Settings without its methods, so encoding does not recurse.
type settingsFields Settings

func (s Settings) MarshalJSON() ([]byte, error) {
	return encodeRecord(settingsFields(s), Leftover{Extra: s.Extra})
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	if kindOf(data) != '{' {
		return errNotObject
	}
	var fields settingsFields
	lo, err := decodeRecord(data, &fields)
	if err != nil {
		return err
	}
	*s = Settings(fields)
	s.Extra = lo.Extra
	return nil
}

func (s Settings) Limit() int {
	if s.NewsLimit != nil && *s.NewsLimit > 0 {
		return *s.NewsLimit
	}
	return 10
}

func (s Settings) clone() Settings {
	out := s
	if s.NewsLimit != nil {
		v := *s.NewsLimit
		out.NewsLimit = &v
	}
	if s.AdminEmail != nil {
		v := *s.AdminEmail
		out.AdminEmail = &v
	}
	if s.MaintenanceMode != nil {
		v := *s.MaintenanceMode
		out.MaintenanceMode = &v
	}
	if s.RegistrationEnabled != nil {
		v := *s.RegistrationEnabled
		out.RegistrationEnabled = &v
	}
	if s.EmailVerification != nil {
		v := *s.EmailVerification
		out.EmailVerification = &v
	}
	if s.UpdatedAt != nil {
		v := *s.UpdatedAt
		out.UpdatedAt = &v
	}
	if s.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}
