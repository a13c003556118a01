package engine

import (
	"fmt"

	"github.com/m3rciful/feedbackbot/relay/chat"
	"github.com/m3rciful/feedbackbot/relay/model"
)

// DefaultGreeting is shown to end-users on /start when no greeting is configured.
const DefaultGreeting = "Hello!\n\n" +
	"This bot is a direct line to our team. Your message reaches us without intermediaries.\n\n" +
	"Please choose a menu item to continue:"

const (
	textAdminGreeting = "👋 Hello, administrator! Use the menu below to manage the bot."
	textAdminIdle     = "Use the menu to manage the bot:"
	textUserIdle      = "To send an inquiry, please use the menu below:"
	textChooseAction  = "Choose an action:"

	textThanks         = "Thank you! Your message has been received."
	textEmptyInquiry   = "❌ The message is empty. Please choose a category and send your text again."
	textNoRights       = "❌ You do not have administrator rights."
	textFailure        = "❌ Something went wrong. Please try again later."
	textNotFound       = "❌ Inquiry not found. It may have been deleted."
	textNoInquiries    = "📭 There are no inquiries yet."
	textAddAdminPrompt = "To add an administrator, forward a message from that user or send their numeric ID."
	textBadIdentifier  = "❌ Could not recognise the user ID. Forward a message from the user or send their numeric ID."
	textEmptyReply     = "❌ The reply is empty, nothing was sent."

	textNotAdmin = "❌ You are not an administrator.\nUse /admin if you want to become one."
	textUnadmin  = "✅ You have been removed from the administrators.\nYou will no longer receive inquiries."
	textSelfOff  = "❌ Self-service administrator access is disabled. Ask an existing administrator to add you."
)

var bodyPrompts = map[model.Category]string{
	model.CategoryQuestion:   "❓ Please write your question in a single message.",
	model.CategoryProblem:    "⚠️ Please describe the problem in a single message.",
	model.CategoryInitiative: "💡 Please describe your initiative in a single message.",
}

// Menu is the set of actions offered to an actor with the given role.
func Menu(admin bool) []chat.Action {
	if admin {
		return []chat.Action{chat.NewAction(chat.ActionAddAdmin), chat.NewAction(chat.ActionRecent)}
	}
	return []chat.Action{
		chat.NewAction(chat.ActionQuestion),
		chat.NewAction(chat.ActionProblem),
		chat.NewAction(chat.ActionInitiative),
	}
}

func textDeleted(id int64) string {
	return fmt.Sprintf("✅ Inquiry #%d deleted.", id)
}

func textAlreadyAdmin(id int64) string {
	return fmt.Sprintf("❌ User %d is already an administrator.", id)
}

func textAdminAdded(id int64) string {
	return fmt.Sprintf("✅ User %d has been added as an administrator.", id)
}

func textSelfAlreadyAdmin() string {
	return "❌ You are already an administrator.\nUse /unadmin if you want to give up administrator rights."
}

func textSelfAdded(id int64) string {
	return fmt.Sprintf("✅ You have been added as an administrator!\nYour ID: %d\n\nYou will now receive every inquiry sent through the bot.", id)
}

func textReplySent(name string) string {
	return fmt.Sprintf("✅ Your reply has been sent to %s.", name)
}

func textReplyUndeliverable(name string) string {
	return fmt.Sprintf("⚠️ Your reply was saved but could not be delivered to %s. They may have blocked the bot.", name)
}
