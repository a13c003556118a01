// Package store persists inquiries, administrators and replies.
//
// Two backends implement Repository: SQL (postgres or sqlite3 through sqlx)
// and DynamoDB. Callers wrap either one with Serialize so that no two
// operations overlap.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/m3rciful/feedbackbot/relay/model"
)

var (
	// ErrNotFound is returned when the referenced inquiry or administrator does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrAlreadyExists is returned when granting the role to an existing administrator.
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrEmptyBody rejects inquiries and replies without text.
	ErrEmptyBody = errors.New("store: empty body")
	// ErrInvalidCategory rejects inquiries with an unknown category.
	ErrInvalidCategory = errors.New("store: invalid category")
)

// DefaultRecentLimit is used by ListRecentInquiries when limit is not positive.
const DefaultRecentLimit = 5

// Repository is the persistence contract of the relay. Every method is its
// own unit of atomicity.
type Repository interface {
	// CreateInquiry stores a new unresolved inquiry and returns it with its id.
	CreateInquiry(ctx context.Context, author model.Author, category model.Category, body string) (model.Inquiry, error)
	// GetInquiry returns ErrNotFound when id does not exist.
	GetInquiry(ctx context.Context, id int64) (model.Inquiry, error)
	// ListRecentInquiries returns up to limit inquiries, newest first.
	ListRecentInquiries(ctx context.Context, limit int) ([]model.Inquiry, error)
	// DeleteInquiry removes the inquiry and its replies. Missing ids are ignored.
	DeleteInquiry(ctx context.Context, id int64) error
	// MarkResolved sets the resolved flag. It is idempotent.
	MarkResolved(ctx context.Context, id int64) error

	// AddReply records a reply and marks the inquiry resolved in one step.
	// It returns ErrNotFound, and writes nothing, if the inquiry is gone.
	AddReply(ctx context.Context, inquiryID, responderID int64, text string) (model.Reply, error)
	// ListReplies returns the replies of an inquiry, oldest first.
	ListReplies(ctx context.Context, inquiryID int64) ([]model.Reply, error)

	// AddAdministrator grants the role. addedBy is stored as null when it is
	// zero or equal to userID. Returns ErrAlreadyExists for existing holders.
	AddAdministrator(ctx context.Context, userID int64, username string, addedBy int64) (model.Administrator, error)
	// RemoveAdministrator revokes the role. Missing ids are ignored.
	RemoveAdministrator(ctx context.Context, userID int64) error
	// GetAdministrator returns ErrNotFound when userID holds no role.
	GetAdministrator(ctx context.Context, userID int64) (model.Administrator, error)
	// ListAdministrators returns the ids of every administrator.
	ListAdministrators(ctx context.Context) ([]int64, error)
	// Administrators returns the full administrator records.
	Administrators(ctx context.Context) ([]model.Administrator, error)
}

func validateInquiry(category model.Category, body string) error {
	if !category.Valid() {
		return ErrInvalidCategory
	}
	if strings.TrimSpace(body) == "" {
		return ErrEmptyBody
	}
	return nil
}

func validateReply(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyBody
	}
	return nil
}

func recentLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}

func addedByValue(userID, addedBy int64) (int64, bool) {
	if addedBy == 0 || addedBy == userID {
		return 0, false
	}
	return addedBy, true
}
