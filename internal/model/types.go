package model

import (
	"bytes"
	"encoding/json"
)

// Role is the platform role of a user
type Role string

const (
	RoleUser     Role = "user"
	RoleCreator  Role = "creator"
	RoleBusiness Role = "business"
	RoleAdmin    Role = "admin"
)

// Refs is a list of references embedded in the user document. Elements may be
// bare ids or populated objects; only the count matters to this service.
type Refs []json.RawMessage

// Len returns the number of references (0 for a nil list)
func (r Refs) Len() int {
	return len(r)
}

// PostRef is a post as embedded in the user document: either a bare id string
// or a populated post carrying its likes.
type PostRef struct {
	ID    string `json:"_id,omitempty"`
	Likes Refs   `json:"likes,omitempty"`
}

// UnmarshalJSON accepts both `"<id>"` and `{"_id": ..., "likes": [...]}`
func (p *PostRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.ID)
	}
	type plain PostRef
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = PostRef(v)
	return nil
}

// User is the typed view of the current user as returned by the backend.
// Fields the service does not use stay in the Document it was decoded from.
type User struct {
	ID                  string    `json:"_id,omitempty"`
	Username            string    `json:"username,omitempty"`
	Email               string    `json:"email,omitempty"`
	Role                Role      `json:"role,omitempty"`
	IsVerified          bool      `json:"isVerified,omitempty"`
	MonetizationEnabled bool      `json:"monetizationEnabled,omitempty"`
	IsMonetized         bool      `json:"isMonetized,omitempty"`
	Posts               []PostRef `json:"posts,omitempty"`
	Subscriber          Refs      `json:"subscriber,omitempty"`
	Subscribed          Refs      `json:"subscribed,omitempty"`
	Comments            Refs      `json:"comments,omitempty"`
	Shared              Refs      `json:"shared,omitempty"`
	Liked               Refs      `json:"liked,omitempty"`
	Watched             Refs      `json:"watched,omitempty"`
	DaysActive          int       `json:"daysActive,omitempty"`
	JoinedEarly         bool      `json:"joinedEarly,omitempty"`
}

// TwoFactorChallenge is the transient state between a login that requires a
// second factor and its verification.
type TwoFactorChallenge struct {
	UserID  string `json:"userId"`
	Pending bool   `json:"pending"`
}
