// Package dialog keeps the per-actor conversation state of the relay.
//
// Each actor owns one slot. A slot holds exactly one State variant; an
// empty slot reads as Idle.
package dialog

import (
	"strconv"

	"github.com/m3rciful/feedbackbot/relay/model"
)

// State is one step of a multi-turn dialog.
type State interface {
	// Name is a stable label used in logs.
	Name() string
	isState()
}

// Idle means no dialog is in progress.
type Idle struct{}

// AwaitingInquiryBody waits for the text of an inquiry of the chosen category.
type AwaitingInquiryBody struct {
	Category model.Category
}

// AwaitingNewAdminIdentifier waits for a forwarded message or a numeric user id.
type AwaitingNewAdminIdentifier struct{}

// AwaitingReplyText waits for the answer to an inquiry.
type AwaitingReplyText struct {
	InquiryID int64
}

func (Idle) Name() string                       { return "idle" }
func (s AwaitingInquiryBody) Name() string      { return "awaiting_inquiry_body:" + string(s.Category) }
func (AwaitingNewAdminIdentifier) Name() string { return "awaiting_admin_identifier" }
func (s AwaitingReplyText) Name() string {
	return "awaiting_reply_text:" + strconv.FormatInt(s.InquiryID, 10)
}

func (Idle) isState()                       {}
func (AwaitingInquiryBody) isState()        {}
func (AwaitingNewAdminIdentifier) isState() {}
func (AwaitingReplyText) isState()          {}

// IsIdle reports whether s is nil or Idle.
func IsIdle(s State) bool {
	if s == nil {
		return true
	}
	_, ok := s.(Idle)
	return ok
}
