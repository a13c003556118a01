// Package model declares the records persisted by the relay: inquiries sent by
// users, the administrators who receive them, and the replies sent back.
package model

import (
	"database/sql"
	"strconv"
	"time"
)

// Category classifies an inquiry. It is fixed at submission time.
type Category string

const (
	CategoryQuestion   Category = "question"
	CategoryProblem    Category = "problem"
	CategoryInitiative Category = "initiative"
)

// Categories lists every category in menu order.
var Categories = []Category{CategoryQuestion, CategoryProblem, CategoryInitiative}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryQuestion, CategoryProblem, CategoryInitiative:
		return true
	}
	return false
}

// Title is the human readable category name.
func (c Category) Title() string {
	switch c {
	case CategoryQuestion:
		return "Question"
	case CategoryProblem:
		return "Problem"
	case CategoryInitiative:
		return "Initiative"
	}
	return "Unspecified"
}

// Author is the sender snapshot stored with an inquiry.
type Author struct {
	ID        int64  `json:"author_id" db:"author_id"`
	Username  string `json:"author_username,omitempty" db:"author_username"`
	FirstName string `json:"author_first_name,omitempty" db:"author_first_name"`
	LastName  string `json:"author_last_name,omitempty" db:"author_last_name"`
}

// FullName joins the first and last name, either of which may be empty.
func (a Author) FullName() string {
	name := a.FirstName
	if a.LastName != "" {
		if name != "" {
			name += " "
		}
		name += a.LastName
	}
	return name
}

// DisplayName returns "@username" when known, otherwise the full name, otherwise the id.
func (a Author) DisplayName() string {
	if a.Username != "" {
		return "@" + a.Username
	}
	if name := a.FullName(); name != "" {
		return name
	}
	return "id " + strconv.FormatInt(a.ID, 10)
}

// Inquiry is a single message submitted by a user.
type Inquiry struct {
	ID int64 `json:"id" db:"id"`
	Author
	Category  Category  `json:"category" db:"category"`
	Body      string    `json:"body" db:"body"`
	Resolved  bool      `json:"resolved" db:"resolved"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Administrator is a user allowed to receive and answer inquiries.
type Administrator struct {
	UserID   int64          `json:"user_id" db:"user_id"`
	Username sql.NullString `json:"-" db:"username"`
	// AddedBy is null when the administrator granted the role to themselves.
	AddedBy sql.NullInt64 `json:"-" db:"added_by"`
	AddedAt time.Time     `json:"added_at" db:"added_at"`
}

// SelfGranted reports whether the administrator added themselves.
func (a Administrator) SelfGranted() bool {
	return !a.AddedBy.Valid || a.AddedBy.Int64 == a.UserID
}

// Reply is an administrator's answer to an inquiry.
type Reply struct {
	ID          int64     `json:"id" db:"id"`
	InquiryID   int64     `json:"inquiry_id" db:"inquiry_id"`
	ResponderID int64     `json:"responder_id" db:"responder_id"`
	Text        string    `json:"text" db:"body"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
