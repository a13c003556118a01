package notify

import (
	"fmt"
	"strings"

	"github.com/m3rciful/feedbackbot/relay/model"
)

const listingTimeLayout = "2006-01-02 15:04 UTC"

func sender(a model.Author) string {
	name := a.FullName()
	switch {
	case name != "" && a.Username != "":
		return fmt.Sprintf("%s (@%s)", name, a.Username)
	case name != "":
		return name
	default:
		return a.DisplayName()
	}
}

// Notice is the text fanned out to administrators for a new inquiry.
func Notice(inq model.Inquiry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📨 New inquiry #%d\n\n", inq.ID)
	fmt.Fprintf(&b, "Category: %s\n", inq.Category.Title())
	fmt.Fprintf(&b, "From: %s\n", sender(inq.Author))
	fmt.Fprintf(&b, "User ID: %d\n\n", inq.Author.ID)
	fmt.Fprintf(&b, "Message:\n%s", inq.Body)
	return b.String()
}

// Summary renders an inquiry in the recent inquiries listing.
func Summary(inq model.Inquiry) string {
	status := "⏳ Awaiting reply"
	if inq.Resolved {
		status = "✅ Answered"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📨 Inquiry #%d\n", inq.ID)
	fmt.Fprintf(&b, "Category: %s\n", inq.Category.Title())
	fmt.Fprintf(&b, "From: %s\n", sender(inq.Author))
	fmt.Fprintf(&b, "User ID: %d\n", inq.Author.ID)
	fmt.Fprintf(&b, "Date: %s\n", inq.CreatedAt.UTC().Format(listingTimeLayout))
	fmt.Fprintf(&b, "Status: %s\n\n", status)
	fmt.Fprintf(&b, "Message:\n%s", inq.Body)
	return b.String()
}

// ReplyText is what the author of an inquiry receives.
func ReplyText(inq model.Inquiry, reply model.Reply) string {
	return fmt.Sprintf("📩 Reply to your inquiry #%d:\n\n%s", inq.ID, reply.Text)
}

// ReplyPrompt asks an administrator for the answer to inq.
func ReplyPrompt(inq model.Inquiry) string {
	return fmt.Sprintf("💬 Type your reply to inquiry #%d from %s:\n\nOriginal message:\n%s", inq.ID, sender(inq.Author), inq.Body)
}

// AuthorName is the name used when confirming a delivered reply.
func AuthorName(a model.Author) string {
	return sender(a)
}

const grantedText = "🎉 You have been granted administrator rights in the feedback bot."
