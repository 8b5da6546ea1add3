package worker

import (
	"fmt"
	"html"

	"github.com/aura-webinar/notifications/pkg/queue"
)

// renderedEmail is one fully rendered outbound message.
type renderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

// renderEmail builds the message for a job from its denormalized payload
// alone; no store read is needed at dispatch time. Name and topic originate
// from registration request bodies, so anything interpolated into the HTML
// variant is escaped.
func renderEmail(job *queue.Job) renderedEmail {
	p := job.Payload
	name := p.FirstName
	if name == "" {
		name = "there"
	}
	when := ""
	if p.ScheduledAt != nil {
		when = p.ScheduledAt.Format("Monday, 2 January 2006 at 15:04 MST")
	}

	switch job.Kind {
	case queue.KindConfirmation:
		subject := fmt.Sprintf("You're registered: %s", p.WebinarTopic)
		text := fmt.Sprintf("Hi %s,\n\nYour registration for %q is confirmed.\nRegistration ID: %s\n", name, p.WebinarTopic, p.RegistrationCode)
		if when != "" {
			text += fmt.Sprintf("\nThe webinar starts on %s.\n", when)
		}
		return renderedEmail{
			Subject: subject,
			Text:    text,
			HTML: fmt.Sprintf("<p>Hi %s,</p><p>Your registration for <strong>%s</strong> is confirmed.</p><p>Registration ID: <code>%s</code></p>",
				html.EscapeString(name), html.EscapeString(p.WebinarTopic), html.EscapeString(p.RegistrationCode)),
		}
	case queue.KindReminder24h:
		return reminderEmail(name, p.WebinarTopic, when, "tomorrow")
	case queue.KindReminder3h:
		return reminderEmail(name, p.WebinarTopic, when, "in 3 hours")
	case queue.KindReminder15m:
		return reminderEmail(name, p.WebinarTopic, when, "in 15 minutes")
	default:
		return renderedEmail{
			Subject: fmt.Sprintf("Update on %s", p.WebinarTopic),
			Text:    fmt.Sprintf("Hi %s,\n\nThere is an update on %q.\n", name, p.WebinarTopic),
		}
	}
}

func reminderEmail(name, topic, when, lead string) renderedEmail {
	subject := fmt.Sprintf("Starting %s: %s", lead, topic)
	text := fmt.Sprintf("Hi %s,\n\nA reminder that %q starts %s.\n", name, topic, lead)
	if when != "" {
		text += fmt.Sprintf("That's %s.\n", when)
	}
	return renderedEmail{
		Subject: subject,
		Text:    text,
		HTML:    fmt.Sprintf("<p>Hi %s,</p><p>A reminder that <strong>%s</strong> starts %s.</p>", html.EscapeString(name), html.EscapeString(topic), lead),
	}
}
