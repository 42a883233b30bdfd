package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// ── PostgreSQL TEXT[] ──

// StringArray maps a PostgreSQL TEXT[] column; implements the GORM Scanner/Valuer pair.
type StringArray []string

// Scan parses the {a,b,"c d"} text form returned by PostgreSQL.
func (a *StringArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	var s string
	switch v := src.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("StringArray.Scan: unsupported type %T", src)
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
	if s == "" {
		*a = StringArray{}
		return nil
	}

	arr := make(StringArray, 0)
	var cur strings.Builder
	quoted, escaped := false, false
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			arr = append(arr, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	arr = append(arr, cur.String())
	*a = arr
	return nil
}

// Value serialises into the PostgreSQL array literal, quoting every element.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	parts := make([]string, len(a))
	for i, s := range a {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		parts[i] = `"` + s + `"`
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// Contains reports whether v is an element of the array.
func (a StringArray) Contains(v string) bool {
	for _, s := range a {
		if s == v {
			return true
		}
	}
	return false
}

// BaseModel audit timestamps embedded in every table model
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// ── Identity ──

// Identity is an externally verified (provider, subject) pair plus display data.
// Name and Email are informational; equality is on Provider and Subject only.
type Identity struct {
	Provider string `json:"provider"`
	Subject  string `json:"subject"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Key returns the canonical userKey "provider:subject".
func (i Identity) Key() string {
	return UserKey(i.Provider, i.Subject)
}

// Valid reports whether both halves of the identity are present.
func (i Identity) Valid() bool {
	return i.Provider != "" && i.Subject != ""
}

// Same compares two identities by (provider, subject).
func (i Identity) Same(o Identity) bool {
	return i.Provider == o.Provider && i.Subject == o.Subject
}

// UserKey joins provider and subject.
func UserKey(provider, subject string) string {
	return provider + ":" + subject
}

// ParseUserKey splits a userKey at the first colon.
func ParseUserKey(key string) (Identity, bool) {
	provider, subject, ok := strings.Cut(key, ":")
	if !ok || provider == "" || subject == "" {
		return Identity{}, false
	}
	return Identity{Provider: provider, Subject: subject}, true
}
