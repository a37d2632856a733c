package models

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

// ParseStatus maps a stored value onto a Status. Anything other than
// "blocked", including an absent field, is active.
func ParseStatus(s string) Status {
	if Status(s) == StatusBlocked {
		return StatusBlocked
	}
	return StatusActive
}

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusBlocked
}

// Document keys shared by every storage backend and the JSON rendering.
const (
	FieldID        = "_id"
	FieldEmail     = "email"
	FieldPassword  = "password"
	FieldStatus    = "status"
	FieldLastLogin = "lastLogin"
)

type User struct {
	ID        string
	Email     string
	Password  string // bcrypt hash
	Status    Status
	LastLogin *time.Time

	// Fields holds every other submitted key, persisted as-is.
	Fields map[string]any
}

// NewUserFromBody splits a registration body into known and opaque fields.
// The password is taken verbatim, hashing is up to the caller.
func NewUserFromBody(body map[string]any) User {
	user := User{
		Status: StatusActive,
		Fields: make(map[string]any, len(body)),
	}

	for k, v := range body {
		switch k {
		case FieldID, FieldLastLogin:
			// store-managed
		case FieldEmail:
			user.Email, _ = v.(string)
		case FieldPassword:
			user.Password, _ = v.(string)
		case FieldStatus:
			if s, ok := v.(string); ok && Status(s).Valid() {
				user.Status = Status(s)
			}
		default:
			user.Fields[k] = v
		}
	}

	return user
}

func (u User) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(u.Fields)+5)
	for k, v := range u.Fields {
		doc[k] = v
	}

	doc[FieldID] = u.ID
	doc[FieldEmail] = u.Email
	doc[FieldPassword] = u.Password
	doc[FieldStatus] = u.Status
	if u.LastLogin != nil {
		doc[FieldLastLogin] = u.LastLogin.UTC()
	}

	return json.Marshal(doc)
}

type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

type UpdateResult struct {
	Acknowledged  bool  `json:"acknowledged"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}
