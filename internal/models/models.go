package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type (
	// Link is the stored record behind a short URL. A slug resolves against
	// ShortID or CustomAlias; only one of them can ever match by construction.
	Link struct {
		ID               int64      `json:"id" db:"id"`
		OriginalURL      string     `json:"originalUrl" db:"original_url"`
		ShortID          string     `json:"shortId" db:"short_id"`
		CustomAlias      string     `json:"customAlias,omitempty" db:"custom_alias"`
		RedirectType     int        `json:"redirectType" db:"redirect_type"`
		ExpiresAt        *time.Time `json:"expiresAt,omitempty" db:"expires_at"`
		PasswordHash     string     `json:"-" db:"password_hash"`
		Tags             StringList `json:"tags" db:"tags"`
		UTMParams        Params     `json:"utmParams,omitempty" db:"utm_params"`
		RequireSignature bool       `json:"requireSignature" db:"require_signature"`
		Clicks           int64      `json:"clicks" db:"clicks"`
		CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
		UserID           string     `json:"userId" db:"user_id"`
	}

	// StringList is stored as a JSON array in a single column.
	StringList []string

	// Params is stored as a JSON object in a single column.
	Params map[string]interface{}
)

func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// Slug returns the path segment the link is addressed by, preferring the
// custom alias when one is set.
func (l *Link) Slug() string {
	if l.CustomAlias != "" {
		return l.CustomAlias
	}
	return l.ShortID
}

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	return string(data), err
}

func (s *StringList) Scan(src interface{}) error {
	return scanJSON(src, s)
}

func (p Params) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	return string(data), err
}

func (p *Params) Scan(src interface{}) error {
	return scanJSON(src, p)
}

func scanJSON(src, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
}

// LinkPatch is an explicit partial update. Nil pointers leave a field
// untouched; the Set* flags distinguish "clear" from "absent" for fields
// where JSON null is meaningful.
type LinkPatch struct {
	OriginalURL      *string
	CustomAlias      *string
	RedirectType     *int
	SetExpiresAt     bool
	ExpiresAt        *time.Time
	SetPassword      bool
	PasswordHash     *string
	Tags             *StringList
	UTMParams        *Params
	RequireSignature *bool
}

func (p LinkPatch) Empty() bool {
	return p.OriginalURL == nil && p.CustomAlias == nil && p.RedirectType == nil &&
		!p.SetExpiresAt && !p.SetPassword && p.Tags == nil && p.UTMParams == nil &&
		p.RequireSignature == nil
}

// CreateRequest is the input for single and bulk link creation.
type CreateRequest struct {
	OriginalURL      string                 `json:"originalUrl"`
	CustomAlias      string                 `json:"customAlias,omitempty"`
	ExpiresAt        *time.Time             `json:"expiresAt,omitempty"`
	Password         string                 `json:"password,omitempty"`
	Tags             []string               `json:"tags,omitempty"`
	RedirectType     int                    `json:"redirectType,omitempty"`
	UTMParams        map[string]interface{} `json:"utmParams,omitempty"`
	RequireSignature bool                   `json:"requireSignature,omitempty"`
}

// ListQuery filters and paginates an owner's links.
type ListQuery struct {
	Page    int
	Limit   int
	Search  string
	Tag     string
	Expired *bool
}

func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
}

func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}
